package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/ocr"
	"github.com/ArionMiles/spendscan/pkg/parser"
	"github.com/ArionMiles/spendscan/pkg/store"
)

type fakeRecognizer map[string][]ocr.Observation

func (f fakeRecognizer) Recognize(_ context.Context, imagePath string) ([]ocr.Observation, error) {
	obs, ok := f[imagePath]
	if !ok {
		return nil, ocr.ErrNoTextFound
	}
	return obs, nil
}

type failingStore struct{}

func (failingStore) Save(context.Context, *api.Expense) error {
	return errors.New("boom")
}

func newProcessor(t *testing.T, rec ocr.Recognizer, s api.Store) *Processor {
	t.Helper()
	return newProcessorWithRules(t, parser.DefaultRules(), rec, s)
}

func newProcessorWithRules(t *testing.T, rules parser.Rules, rec ocr.Recognizer, s api.Store) *Processor {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC) }
	engine, err := parser.New(rules, parser.WithClock(clock))
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	return New(Config{
		Recognizer:  rec,
		Parser:      engine,
		Resolver:    command.NewResolver(engine, api.DefaultDirectory(), clock),
		Store:       s,
		Concurrency: 2,
	}, nil)
}

func TestProcess(t *testing.T) {
	rec := fakeRecognizer{
		"ride.png":   {{Text: "滴滴出行 -12.40", Confidence: 0.9}},
		"coffee.png": {{Text: "星巴克(Starbucks) ¥45.00", Confidence: 0.8}},
		"thanks.png": {{Text: "谢谢惠顾", Confidence: 0.9}},
	}
	mem := store.NewMemory()
	p := newProcessor(t, rec, mem)

	summary := p.Process(context.Background(), []string{"ride.png", "blank.png", "coffee.png", "thanks.png"})

	if summary.BatchID == "" {
		t.Error("expected a batch id")
	}
	if summary.Processed != 2 {
		t.Errorf("processed: got %d, want 2", summary.Processed)
	}
	if got := summary.Total.StringFixed(2); got != "57.40" {
		t.Errorf("total: got %s, want 57.40", got)
	}
	wantErrors := []string{"OCR识别失败: 未找到可识别的文字", "未识别到有效金额"}
	if len(summary.Errors) != len(wantErrors) {
		t.Fatalf("errors: got %v, want %v", summary.Errors, wantErrors)
	}
	for i := range wantErrors {
		if summary.Errors[i] != wantErrors[i] {
			t.Errorf("error %d: got %q, want %q", i, summary.Errors[i], wantErrors[i])
		}
	}
	if !summary.Success() {
		t.Error("expected success")
	}
	if got, want := summary.Message(), "成功处理 2 张截图，总金额 ¥57.40"; got != want {
		t.Errorf("message: got %q, want %q", got, want)
	}
	if mem.Len() != 2 {
		t.Errorf("stored: got %d, want 2", mem.Len())
	}
	for _, e := range summary.Expenses {
		if e.Source != Source {
			t.Errorf("source: got %q, want %q", e.Source, Source)
		}
	}
}

func TestProcessNoteFallback(t *testing.T) {
	rec := fakeRecognizer{"price.png": {{Text: "¥25.00", Confidence: 0.9}}}
	p := newProcessor(t, rec, store.NewMemory())

	summary := p.Process(context.Background(), []string{"price.png"})
	if len(summary.Expenses) != 1 {
		t.Fatalf("got %d expenses, want 1 (errors: %v)", len(summary.Expenses), summary.Errors)
	}
	e := summary.Expenses[0]
	if e.Note != DefaultNote {
		t.Errorf("note: got %q, want %q", e.Note, DefaultNote)
	}
	if e.Category != api.DefaultCategory || e.Account != api.DefaultAccount {
		t.Errorf("got category %q account %q, want defaults", e.Category, e.Account)
	}
}

func TestProcessRejectsLowConfidence(t *testing.T) {
	rules := parser.DefaultRules()
	rules.Weights = parser.Weights{Amount: 0.2, Merchant: 0.2, Category: 0.2, Time: 0.2, PaymentMethod: 0.2}

	rec := fakeRecognizer{
		"price.png": {{Text: "¥25.00", Confidence: 0.9}},
		"ride.png":  {{Text: "滴滴出行 -12.40", Confidence: 0.9}},
	}
	mem := store.NewMemory()
	p := newProcessorWithRules(t, rules, rec, mem)

	summary := p.Process(context.Background(), []string{"price.png", "ride.png"})
	if summary.Processed != 1 {
		t.Fatalf("processed: got %d, want 1 (errors: %v)", summary.Processed, summary.Errors)
	}
	if got := summary.Total.StringFixed(2); got != "12.40" {
		t.Errorf("total: got %s, want 12.40", got)
	}
	if len(summary.Errors) != 1 || summary.Errors[0] != "未识别到有效金额" {
		t.Errorf("errors: got %v, want [未识别到有效金额]", summary.Errors)
	}
	if mem.Len() != 1 {
		t.Errorf("stored: got %d, want 1", mem.Len())
	}
}

func TestProcessSaveFailure(t *testing.T) {
	rec := fakeRecognizer{"ride.png": {{Text: "滴滴出行 -12.40", Confidence: 0.9}}}
	p := newProcessor(t, rec, failingStore{})

	summary := p.Process(context.Background(), []string{"ride.png"})
	if summary.Success() {
		t.Error("expected failure")
	}
	if got, want := summary.Message(), "处理失败: 保存失败: boom"; got != want {
		t.Errorf("message: got %q, want %q", got, want)
	}
}

func TestProcessEmpty(t *testing.T) {
	p := newProcessor(t, fakeRecognizer{}, store.NewMemory())

	summary := p.Process(context.Background(), nil)
	if summary.Success() || summary.Processed != 0 || !summary.Total.IsZero() {
		t.Errorf("unexpected summary: %+v", summary)
	}
}
