// Package client builds OAuth2 HTTP clients for the Google APIs the Gmail
// reader and Sheets writer talk to.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Defaults for the local authorization flow.
const (
	DefaultTokenFile    = "data/token.json"
	DefaultCallbackPort = 8085
	callbackPath        = "/callback"
	authTimeout         = 5 * time.Minute
)

// ErrNoToken is returned by New when no token is stored and the browser flow
// is not allowed.
var ErrNoToken = errors.New("no stored oauth token, run `spendscan setup` first")

// Options configures client construction.
type Options struct {
	SecretFile string
	// TokenFile defaults to DefaultTokenFile.
	TokenFile string
	Scopes    []string
	// Interactive allows the browser flow when no token is stored.
	Interactive  bool
	CallbackPort int
	Logger       *slog.Logger
}

func (o *Options) setDefaults() {
	if o.TokenFile == "" {
		o.TokenFile = DefaultTokenFile
	}
	if o.CallbackPort == 0 {
		o.CallbackPort = DefaultCallbackPort
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// New returns an authorized HTTP client, running the browser flow if allowed
// and no token is stored yet.
func New(ctx context.Context, opts Options) (*http.Client, error) {
	opts.setDefaults()

	config, err := configFromFile(opts.SecretFile, opts.Scopes)
	if err != nil {
		return nil, err
	}

	tok, err := TokenFromFile(opts.TokenFile)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !opts.Interactive:
		return nil, ErrNoToken
	case errors.Is(err, os.ErrNotExist):
		opts.Logger.Info("no existing token found, initiating OAuth flow")
		if tok, err = authorize(ctx, config, opts); err != nil {
			return nil, err
		}
		if err := SaveToken(opts.TokenFile, tok); err != nil {
			opts.Logger.Error("failed to save token", "error", err)
		}
	default:
		return nil, fmt.Errorf("loading token: %w", err)
	}

	return config.Client(ctx, tok), nil
}

// Authorize always runs the browser flow and stores the resulting token.
func Authorize(ctx context.Context, opts Options) error {
	opts.setDefaults()

	config, err := configFromFile(opts.SecretFile, opts.Scopes)
	if err != nil {
		return err
	}
	tok, err := authorize(ctx, config, opts)
	if err != nil {
		return err
	}
	opts.Logger.Info("saving credential file", "path", opts.TokenFile)
	return SaveToken(opts.TokenFile, tok)
}

func configFromFile(path string, scopes []string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return config, nil
}

func authorize(ctx context.Context, config *oauth2.Config, opts Options) (*oauth2.Token, error) {
	config.RedirectURL = fmt.Sprintf("http://localhost:%d%s", opts.CallbackPort, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", opts.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", opts.CallbackPort, err)
	}

	mux := http.NewServeMux()
	mux.Handle(callbackPath, callbackHandler(state, codeChan, errChan))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			opts.Logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		opts.Logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", authTimeout)
	}
}

// callbackHandler delivers the first valid authorization code to codeChan.
// Both channels must be buffered.
func callbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.Handler {
	report := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			report(errors.New("invalid state parameter"))
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			report(fmt.Errorf("%s: %s", errMsg, q.Get("error_description")))
			http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			report(errors.New("no authorization code received"))
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>spendscan</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>授权成功</h1>
<p>可以关闭此窗口并返回终端。</p>
</body>
</html>`)

		select {
		case codeChan <- code:
		default:
		}
	})
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// TokenFromFile reads a stored token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken writes token to path, creating the directory if needed.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
