package mbox

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/parser"
)

func buildMbox(t *testing.T) string {
	t.Helper()

	gbkHTML, err := simplifiedchinese.GBK.NewEncoder().String("<p>滴滴出行</p><p>-12.40</p>")
	if err != nil {
		t.Fatal(err)
	}

	messages := []string{
		"From pay@wechat.test Thu Mar 14 09:00:00 2024\n" +
			"Message-Id: <a1@wechat.test>\n" +
			"Date: Thu, 14 Mar 2024 09:00:00 +0800\n" +
			"Subject: =?UTF-8?B?5pSv5LuY5Yet6K+B?=\n" +
			"Content-Type: text/plain; charset=utf-8\n" +
			"\n" +
			"交易成功\n美团外卖 -32.40\n支付方式 零钱\n",

		"From trips@didi.test Thu Mar 14 10:00:00 2024\n" +
			"Date: Thu, 14 Mar 2024 10:00:00 +0800\n" +
			"MIME-Version: 1.0\n" +
			"Content-Type: multipart/alternative; boundary=\"b1\"\n" +
			"\n" +
			"--b1\n" +
			"Content-Type: text/plain; charset=utf-8\n" +
			"\n" +
			"see html\n" +
			"--b1\n" +
			"Content-Type: text/html; charset=gbk\n" +
			"Content-Transfer-Encoding: base64\n" +
			"\n" +
			base64.StdEncoding.EncodeToString([]byte(gbkHTML)) + "\n" +
			"--b1--\n",

		"From friend@mail.test Thu Mar 14 11:00:00 2024\n" +
			"Subject: hi\n" +
			"\n" +
			"周末一起出去玩吗\n",

		"From shop@mall.test Thu Mar 14 12:00:00 2024\n" +
			"Message-Id: <q4@mall.test>\n" +
			"Content-Type: text/plain; charset=utf-8\n" +
			"Content-Transfer-Encoding: quoted-printable\n" +
			"\n" +
			"=E5=90=88=E8=AE=A1 25.00\n",
	}

	path := filepath.Join(t.TempDir(), "receipts.mbox")
	if err := os.WriteFile(path, []byte(strings.Join(messages, "\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRead(t *testing.T) {
	path := buildMbox(t)

	r, err := New(parser.Default(), Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	out := make(chan *api.Expense, 10)
	if err := r.Read(context.Background(), out, nil); err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got []*api.Expense
	for e := range out {
		got = append(got, e)
	}
	if len(got) != 3 {
		t.Fatalf("got %d expenses, want 3", len(got))
	}

	tests := []struct {
		messageID string
		amount    string
		merchant  string
		category  string
	}{
		{"a1@wechat.test", "32.40", "美团外卖", "餐饮"},
		{path + "#1", "12.40", "滴滴出行", "交通"},
		{"q4@mall.test", "25.00", "", api.DefaultCategory},
	}
	for i, tc := range tests {
		e := got[i]
		if e.MessageID != tc.messageID {
			t.Errorf("expense %d message id: got %q, want %q", i, e.MessageID, tc.messageID)
		}
		if a := e.Amount.StringFixed(2); a != tc.amount {
			t.Errorf("expense %d amount: got %s, want %s", i, a, tc.amount)
		}
		if e.Merchant != tc.merchant {
			t.Errorf("expense %d merchant: got %q, want %q", i, e.Merchant, tc.merchant)
		}
		if e.Category != tc.category {
			t.Errorf("expense %d category: got %q, want %q", i, e.Category, tc.category)
		}
		if e.Source != DefaultSource {
			t.Errorf("expense %d source: got %q", i, e.Source)
		}
	}

	wantDate := time.Date(2024, time.March, 14, 1, 0, 0, 0, time.UTC)
	if !got[0].Timestamp.Equal(wantDate) {
		t.Errorf("timestamp: got %v, want %v", got[0].Timestamp, wantDate)
	}
	if !got[2].Timestamp.Equal(fixed) {
		t.Errorf("timestamp without Date header: got %v, want %v", got[2].Timestamp, fixed)
	}
}

func TestReadMissingFile(t *testing.T) {
	r, err := New(parser.Default(), Config{Path: filepath.Join(t.TempDir(), "absent.mbox")}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := make(chan *api.Expense, 1)
	if err := r.Read(context.Background(), out, nil); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, ok := <-out; ok {
		t.Error("expected the output channel to be closed")
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(parser.Default(), Config{}, nil); err == nil {
		t.Error("expected an error without a path")
	}
}
