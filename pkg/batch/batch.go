// Package batch records expenses from a set of receipt screenshots.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/ocr"
)

// DefaultNote is stored for screenshots that yield no note of their own.
const DefaultNote = "批量截图识别"

// Source tags expenses recorded from screenshots.
const Source = "screenshot"

// DefaultConcurrency is used when Config.Concurrency is not positive.
const DefaultConcurrency = 4

// Config wires a Processor to its collaborators. All fields but Concurrency are required.
type Config struct {
	Recognizer  ocr.Recognizer
	Parser      api.Parser
	Resolver    *command.Resolver
	Store       api.Store
	Concurrency int
}

// Processor runs OCR, parsing and saving for each screenshot independently.
type Processor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Processor.
func New(cfg Config, logger *slog.Logger) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, logger: logger.With("component", "batch")}
}

// Summary aggregates one Process call.
type Summary struct {
	BatchID   string          `json:"batch_id"`
	Processed int             `json:"processed"`
	Total     decimal.Decimal `json:"total"`
	Errors    []string        `json:"errors,omitempty"`
	Expenses  []*api.Expense  `json:"expenses,omitempty"`
}

// Success reports whether at least one screenshot was recorded.
func (s Summary) Success() bool {
	return s.Processed > 0
}

// Message is the user-facing outcome of the batch.
func (s Summary) Message() string {
	if s.Success() {
		return fmt.Sprintf("成功处理 %d 张截图，总金额 ¥%s", s.Processed, s.Total.StringFixed(2))
	}
	return "处理失败: " + strings.Join(s.Errors, ", ")
}

type itemResult struct {
	expense *api.Expense
	err     string
}

// Process handles every image and returns once all of them have finished.
// A failing image never stops the others; its reason is listed in Summary.Errors
// in input order.
func (p *Processor) Process(ctx context.Context, images []string) Summary {
	summary := Summary{BatchID: uuid.NewString()}
	results := make([]itemResult, len(images))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, img := range images {
		g.Go(func() error {
			results[i] = p.processOne(ctx, summary.BatchID, img)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err != "" {
			summary.Errors = append(summary.Errors, r.err)
			continue
		}
		summary.Processed++
		summary.Total = summary.Total.Add(r.expense.Amount)
		summary.Expenses = append(summary.Expenses, r.expense)
	}

	p.logger.Info("batch finished",
		"batch_id", summary.BatchID,
		"images", len(images),
		"processed", summary.Processed,
		"total", summary.Total.StringFixed(2),
		"errors", len(summary.Errors),
	)
	return summary
}

func (p *Processor) processOne(ctx context.Context, batchID, image string) itemResult {
	obs, err := p.cfg.Recognizer.Recognize(ctx, image)
	if err != nil {
		p.logger.Warn("recognition failed", "image", image, "error", err)
		return itemResult{err: "OCR识别失败: " + err.Error()}
	}

	info := p.cfg.Parser.Parse(ocr.Join(obs))
	if !p.cfg.Parser.Validate(info) {
		return itemResult{err: "未识别到有效金额"}
	}

	note := info.Note
	if note == "" {
		note = DefaultNote
	}
	expense, err := p.cfg.Resolver.Resolve(command.Request{
		Amount:   info.Amount,
		Category: info.CategoryName,
		Account:  info.PaymentMethod,
		Note:     note,
	})
	if err != nil {
		return itemResult{err: err.Error()}
	}
	expense.Merchant = info.MerchantName
	expense.Source = Source
	expense.Confidence = info.Confidence
	expense.MessageID = batchID + ":" + image
	if info.TransactionTime != nil {
		expense.Timestamp = *info.TransactionTime
	}

	if err := p.cfg.Store.Save(ctx, expense); err != nil {
		p.logger.Error("saving expense", "image", image, "error", err)
		return itemResult{err: "保存失败: " + err.Error()}
	}
	return itemResult{expense: expense}
}
