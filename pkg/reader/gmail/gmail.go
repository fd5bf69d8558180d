// Package gmail implements a Reader that extracts expenses from Gmail
// payment notifications.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/reader/mailtext"
)

// DefaultInterval is the polling interval used when Config.Interval is unset.
const DefaultInterval = 10 * time.Second

// Query is a Gmail search whose matching messages are parsed as receipts.
type Query struct {
	Name    string `json:"name"`
	Query   string `json:"query"`
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
}

// Config holds configuration for the Gmail reader.
type Config struct {
	Queries []Query
	// Interval between query evaluations. Defaults to DefaultInterval.
	Interval time.Duration
}

// Reader reads expenses from Gmail messages.
type Reader struct {
	client   *gmail.Service
	parser   api.Parser
	queries  []Query
	interval time.Duration
	logger   *slog.Logger
}

// New creates a new Gmail reader.
func New(httpClient *http.Client, p api.Parser, cfg Config, logger *slog.Logger) (*Reader, error) {
	client, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return newReader(client, p, cfg, logger), nil
}

func newReader(client *gmail.Service, p api.Parser, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reader{
		client:   client,
		parser:   p,
		queries:  cfg.Queries,
		interval: interval,
		logger:   logger,
	}
}

// Read polls every enabled query and sends usable expenses to out until ctx
// is canceled. Messages are marked read only once their MessageID arrives
// on ackChan.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Expense, ackChan <-chan string) error {
	defer close(out)

	go r.handleAcknowledgments(ctx, ackChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.evaluateQueries(ctx, out)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.evaluateQueries(ctx, out)
		}
	}
}

func (r *Reader) handleAcknowledgments(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgID, ok := <-ackChan:
			if !ok {
				r.logger.Info("acknowledgment channel closed")
				return
			}
			r.markAsRead(ctx, msgID)
		}
	}
}

func (r *Reader) markAsRead(ctx context.Context, msgID string) {
	_, err := r.client.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to mark message as read", "message_id", msgID, "error", err)
		return
	}
	r.logger.Debug("marked message as read", "message_id", msgID)
}

func (r *Reader) evaluateQueries(ctx context.Context, out chan<- *api.Expense) {
	r.logger.Info("starting query evaluation", "query_count", len(r.queries))

	var wg sync.WaitGroup
	for _, q := range r.queries {
		if !q.Enabled {
			r.logger.Debug("skipping disabled query", "query", q.Name)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.processQuery(ctx, q, out)
		}()
	}
	wg.Wait()

	r.logger.Info("query evaluation complete")
}

func (r *Reader) processQuery(ctx context.Context, q Query, out chan<- *api.Expense) {
	logger := r.logger.With("query", q.Name, "source", q.Source)

	resp, err := r.client.Users.Messages.List("me").Q(q.Query).Context(ctx).Do()
	if err != nil {
		logger.Error("failed to list messages", "error", err)
		return
	}

	logger.Info("found messages", "count", len(resp.Messages))

	for _, msg := range resp.Messages {
		if err := r.processMessage(ctx, msg.Id, q, out); err != nil {
			logger.Error("failed to process message", "message_id", msg.Id, "error", err)
		}
	}
}

func (r *Reader) processMessage(ctx context.Context, msgID string, q Query, out chan<- *api.Expense) error {
	msg, err := r.client.Users.Messages.Get("me", msgID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	subject := header(msg.Payload, "Subject")
	text, err := extractText(msg.Payload)
	if err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	if text == "" {
		r.logger.Warn("empty message body", "message_id", msgID, "subject", subject)
		return nil
	}

	info := r.parser.Parse(text)
	if !r.parser.Validate(info) {
		r.logger.Debug("message is not a usable receipt",
			"message_id", msgID,
			"subject", subject,
			"confidence", info.Confidence,
		)
		return nil
	}

	received := time.UnixMilli(msg.InternalDate)
	expense := api.NewExpense(info, q.Source, msgID, received)

	r.logger.Debug("extracted expense",
		"subject", subject,
		"amount", expense.Amount.StringFixed(2),
		"merchant", expense.Merchant,
		"category", expense.Category,
		"message_id", msgID,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- expense:
	}
	return nil
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractText prefers the HTML alternative, searching nested multiparts,
// and falls back to plain text.
func extractText(payload *gmail.MessagePart) (string, error) {
	if payload == nil {
		return "", nil
	}
	htmlPart := findPart(payload, "text/html")
	if htmlPart == nil {
		htmlPart = findPart(payload, "text/plain")
	}
	if htmlPart == nil || htmlPart.Body == nil || htmlPart.Body.Data == "" {
		return "", nil
	}

	body, err := decodeData(htmlPart.Body.Data)
	if err != nil {
		return "", err
	}

	contentType := header(htmlPart, "Content-Type")
	if contentType == "" {
		contentType = htmlPart.MimeType
	}
	return mailtext.Clean(body, contentType)
}

func findPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	if part.MimeType == mimeType {
		return part
	}
	for _, p := range part.Parts {
		if found := findPart(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

func decodeData(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}
