// Package mbox implements a Reader over a local mbox file, for receipts
// exported from desktop mail clients.
package mbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
	"time"

	gombox "github.com/emersion/go-mbox"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/reader/mailtext"
)

// DefaultSource tags expenses read from mbox files.
const DefaultSource = "mbox"

// Config holds configuration for the mbox reader.
type Config struct {
	Path   string
	Source string
}

// Reader parses every message of an mbox file once.
type Reader struct {
	path   string
	source string
	parser api.Parser
	now    func() time.Time
	logger *slog.Logger
}

// New creates a new mbox reader.
func New(p api.Parser, cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, errors.New("mbox path is required")
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		path:   cfg.Path,
		source: cfg.Source,
		parser: p,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Read sends one expense per usable message and returns when the file is
// exhausted. The file is never modified, so acknowledgments are not needed.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Expense, _ <-chan string) error {
	defer close(out)

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()

	mr := gombox.NewReader(f)
	var total, emitted int
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading message %d: %w", i, err)
		}
		total++

		expense, err := r.processMessage(raw, i)
		if err != nil {
			r.logger.Warn("skipping message", "index", i, "error", err)
			continue
		}
		if expense == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- expense:
			emitted++
		}
	}

	r.logger.Info("mbox read complete", "path", r.path, "messages", total, "expenses", emitted)
	return nil
}

func (r *Reader) processMessage(raw io.Reader, index int) (*api.Expense, error) {
	msg, err := mail.ReadMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	text, err := MessageText(msg)
	if err != nil {
		return nil, err
	}

	info := r.parser.Parse(text)
	if !r.parser.Validate(info) {
		r.logger.Debug("message is not a usable receipt", "index", index, "subject", decodeSubject(msg.Header.Get("Subject")))
		return nil, nil
	}

	msgID := strings.Trim(msg.Header.Get("Message-Id"), "<> ")
	if msgID == "" {
		msgID = fmt.Sprintf("%s#%d", r.path, index)
	}
	received, err := msg.Header.Date()
	if err != nil {
		received = r.now()
	}
	return api.NewExpense(info, r.source, msgID, received), nil
}

func decodeSubject(s string) string {
	dec := mime.WordDecoder{CharsetReader: mailtext.CharsetReader}
	if decoded, err := dec.DecodeHeader(s); err == nil {
		return decoded
	}
	return s
}

// MessageText returns the readable text of msg, preferring an HTML
// alternative over plain text in multipart messages.
func MessageText(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		var found bodies
		if err := found.walk(msg.Body, params["boundary"]); err != nil {
			return "", err
		}
		return found.text()
	}

	body, err := io.ReadAll(decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding")))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return mailtext.Clean(body, contentType)
}

type textPart struct {
	data        []byte
	contentType string
}

type bodies struct {
	html, plain *textPart
}

func (b *bodies) walk(r io.Reader, boundary string) error {
	if boundary == "" {
		return errors.New("multipart message without boundary")
	}

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading part: %w", err)
		}

		contentType := part.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			if err := b.walk(part, params["boundary"]); err != nil {
				return err
			}
		case mediaType == "text/html" && b.html == nil, mediaType == "text/plain" && b.plain == nil:
			data, err := io.ReadAll(decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding")))
			if err != nil {
				return fmt.Errorf("reading %s part: %w", mediaType, err)
			}
			if mediaType == "text/html" {
				b.html = &textPart{data: data, contentType: contentType}
			} else {
				b.plain = &textPart{data: data, contentType: contentType}
			}
		}
	}
}

func (b *bodies) text() (string, error) {
	chosen := b.html
	if chosen == nil {
		chosen = b.plain
	}
	if chosen == nil {
		return "", nil
	}
	return mailtext.Clean(chosen.data, chosen.contentType)
}

// decodeTransfer undoes base64 and quoted-printable transfer encodings.
// multipart.Reader already strips quoted-printable from parts, leaving no
// header behind, so those pass through unchanged.
func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
