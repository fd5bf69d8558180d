package parser

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a \n\t b  ", "a b"},
		{"a　b", "a b"},
		{"美团\r\n-32.40", "美团 -32.40"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("美团外卖", 2); got != "美团" {
		t.Errorf("got %q, want 美团", got)
	}
	if got := truncateRunes("美团", 10); got != "美团" {
		t.Errorf("got %q, want 美团", got)
	}
}

func TestGenerateNote(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		merchant string
		want     string
	}{
		{"merchant wins", "早餐\n¥5", "全家", "全家"},
		{"skips price lines", "¥45.00\n  全家  早餐 \n谢谢", "", "全家 早餐"},
		{"skips yuan lines", "共 12元\n收银台三号", "", "收银台三号"},
		{"too short", "ab\n元", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := generateNote(tc.raw, tc.merchant); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTime(t *testing.T) {
	c := mustCompileDefaults(t)

	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"full timestamp", "2024-12-01 12:30:05", time.Date(2024, time.December, 1, 12, 30, 5, 0, time.UTC)},
		{"slash date", "2024/12/01 08:15", time.Date(2024, time.December, 1, 8, 15, 0, 0, time.UTC)},
		{"month day takes clock year", "12-01 14:30", time.Date(2025, time.December, 1, 14, 30, 0, 0, time.UTC)},
		{"clock only takes clock date", "支付时间 17:04", time.Date(2025, time.March, 14, 17, 4, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.extractTime(tc.text, frozenNow)
			if got == nil {
				t.Fatalf("got nil, want %v", tc.want)
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	if got := c.extractTime("99:99", frozenNow); got != nil {
		t.Errorf("invalid clock: got %v, want nil", got)
	}
	if got := c.extractTime("没有时间", frozenNow); got != nil {
		t.Errorf("no time: got %v, want nil", got)
	}
}
