// Package plugins provides a registry of the readers and writers the daemon
// can be configured with.
package plugins

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/ocr"
	"github.com/ArionMiles/spendscan/pkg/parser"
)

// Deps carries the shared collaborators plugin factories may need.
type Deps struct {
	// HTTPClient is an OAuth client; nil unless a Google plugin is selected.
	HTTPClient *http.Client
	Parser     api.Parser
	Directory  api.Directory
	Recognizer ocr.Recognizer
	// Concurrency bounds parallel OCR work.
	Concurrency int
	// PostgresDSN is used when the postgres writer config has no dsn.
	PostgresDSN string
	Logger      *slog.Logger
}

// ReaderPlugin builds an api.Reader from JSON configuration.
type ReaderPlugin interface {
	Name() string
	Description() string
	// RequiredScopes returns the OAuth scopes the reader needs, if any.
	RequiredScopes() []string
	NewReader(deps Deps, config json.RawMessage) (api.Reader, error)
}

// WriterPlugin builds an api.Writer from JSON configuration.
type WriterPlugin interface {
	Name() string
	Description() string
	RequiredScopes() []string
	NewWriter(deps Deps, config json.RawMessage) (api.Writer, error)
}

// Registry manages available reader and writer plugins.
type Registry struct {
	readers map[string]ReaderPlugin
	writers map[string]WriterPlugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]ReaderPlugin),
		writers: make(map[string]WriterPlugin),
	}
}

// Default returns a registry with every built-in plugin registered.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []ReaderPlugin{&GmailReader{}, &MboxReader{}, &PDFReader{}, &ImagesReader{}} {
		if err := r.RegisterReader(p); err != nil {
			panic(err)
		}
	}
	for _, p := range []WriterPlugin{&CSVWriter{}, &JSONWriter{}, &SheetsWriter{}, &PostgresWriter{}} {
		if err := r.RegisterWriter(p); err != nil {
			panic(err)
		}
	}
	return r
}

// RegisterReader registers a reader plugin.
func (r *Registry) RegisterReader(plugin ReaderPlugin) error {
	name := plugin.Name()
	if _, exists := r.readers[name]; exists {
		return fmt.Errorf("reader plugin %q already registered", name)
	}
	r.readers[name] = plugin
	return nil
}

// RegisterWriter registers a writer plugin.
func (r *Registry) RegisterWriter(plugin WriterPlugin) error {
	name := plugin.Name()
	if _, exists := r.writers[name]; exists {
		return fmt.Errorf("writer plugin %q already registered", name)
	}
	r.writers[name] = plugin
	return nil
}

// GetReader returns a reader plugin by name.
func (r *Registry) GetReader(name string) (ReaderPlugin, error) {
	plugin, exists := r.readers[name]
	if !exists {
		return nil, fmt.Errorf("reader plugin %q not found", name)
	}
	return plugin, nil
}

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) {
	plugin, exists := r.writers[name]
	if !exists {
		return nil, fmt.Errorf("writer plugin %q not found", name)
	}
	return plugin, nil
}

// ListReaders returns all registered reader plugins sorted by name.
func (r *Registry) ListReaders() []ReaderPlugin {
	plugins := make([]ReaderPlugin, 0, len(r.readers))
	for _, plugin := range r.readers {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// ListWriters returns all registered writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin {
	plugins := make([]WriterPlugin, 0, len(r.writers))
	for _, plugin := range r.writers {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// Scopes returns the deduplicated, sorted OAuth scopes required by the named
// reader and writer.
func (r *Registry) Scopes(readerName, writerName string) ([]string, error) {
	reader, err := r.GetReader(readerName)
	if err != nil {
		return nil, err
	}
	writer, err := r.GetWriter(writerName)
	if err != nil {
		return nil, err
	}

	scopeSet := make(map[string]struct{})
	for _, scope := range reader.RequiredScopes() {
		scopeSet[scope] = struct{}{}
	}
	for _, scope := range writer.RequiredScopes() {
		scopeSet[scope] = struct{}{}
	}

	scopes := make([]string, 0, len(scopeSet))
	for scope := range scopeSet {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

// CreateReader creates a reader instance from a plugin.
func (r *Registry) CreateReader(name string, deps Deps, config json.RawMessage) (api.Reader, error) {
	plugin, err := r.GetReader(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewReader(deps.withDefaults(), config)
}

// CreateWriter creates a writer instance from a plugin.
func (r *Registry) CreateWriter(name string, deps Deps, config json.RawMessage) (api.Writer, error) {
	plugin, err := r.GetWriter(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewWriter(deps.withDefaults(), config)
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Parser == nil {
		d.Parser = parser.Default(parser.WithLogger(d.Logger))
	}
	if len(d.Directory.Categories) == 0 && len(d.Directory.Accounts) == 0 {
		d.Directory = api.DefaultDirectory()
	}
	return d
}

// decode unmarshals a plugin config; an empty config leaves v untouched.
func decode(name string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling %s config: %w", name, err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
