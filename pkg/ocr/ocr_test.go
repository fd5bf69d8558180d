package ocr

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t100\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t20\t20\t96.5\t美\n" +
	"5\t1\t1\t1\t1\t2\t30\t10\t20\t20\t93.5\t团\n" +
	"5\t1\t1\t1\t1\t3\t60\t10\t50\t20\t90\t-32.40\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t50\t20\t80\t2024-12-01\n" +
	"5\t1\t1\t1\t2\t2\t70\t40\t50\t20\t70\t12:30:05\n" +
	"5\t1\t1\t1\t3\t1\t10\t70\t50\t20\t95\t \n" +
	"5\t1\t2\t1\t1\t1\t10\t90\t50\t20\t60\tStarbucks\n" +
	"5\t1\t2\t1\t1\t2\t70\t90\t50\t20\t50\tCoffee\n"

func TestParseTSV(t *testing.T) {
	obs, err := ParseTSV(strings.NewReader(sampleTSV))
	if err != nil {
		t.Fatalf("ParseTSV: %v", err)
	}

	want := []Observation{
		{Text: "美团-32.40", Confidence: 0.9333},
		{Text: "2024-12-01 12:30:05", Confidence: 0.75},
		{Text: "Starbucks Coffee", Confidence: 0.55},
	}
	if len(obs) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(obs), len(want), obs)
	}
	for i := range want {
		if obs[i].Text != want[i].Text {
			t.Errorf("line %d text: got %q, want %q", i, obs[i].Text, want[i].Text)
		}
		if math.Abs(obs[i].Confidence-want[i].Confidence) > 1e-3 {
			t.Errorf("line %d confidence: got %v, want %v", i, obs[i].Confidence, want[i].Confidence)
		}
	}
}

func TestParseTSVEmpty(t *testing.T) {
	obs, err := ParseTSV(strings.NewReader(""))
	if err != nil || len(obs) != 0 {
		t.Errorf("got %v, %v; want no lines and no error", obs, err)
	}

	if _, err := ParseTSV(strings.NewReader("a\tb\n")); err == nil {
		t.Error("expected an error for a header without tesseract columns")
	}
}

func TestJoin(t *testing.T) {
	obs := []Observation{
		{Text: "a", Confidence: 0.5},
		{Text: "b", Confidence: 0.9},
		{Text: "c", Confidence: 0.5},
	}
	if got := Join(obs); got != "b\na\nc" {
		t.Errorf("got %q, want %q", got, "b\na\nc")
	}
	if obs[0].Text != "a" {
		t.Error("Join reordered its input")
	}
	if got := Join(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRecognizeErrors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "receipt.png")
	if err := os.WriteFile(img, []byte("not really a png"), 0o600); err != nil {
		t.Fatal(err)
	}

	missingEngine := NewTesseract("spendscan-no-such-ocr-binary", "", nil)
	if _, err := missingEngine.Recognize(context.Background(), img); !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("got %v, want ErrEngineNotFound", err)
	}

	if _, err := missingEngine.Recognize(context.Background(), filepath.Join(dir, "absent.png")); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage", err)
	}
	if _, err := missingEngine.Recognize(context.Background(), dir); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("directory: got %v, want ErrInvalidImage", err)
	}
}
