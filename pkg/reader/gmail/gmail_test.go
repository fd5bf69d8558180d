package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/parser"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name: "nested html alternative",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain")}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>实付</p><p>￥19.80</p>")}},
					},
				}},
			},
			want: "实付\n¥19.80",
		},
		{
			name: "plain only",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Headers:  []*gmail.MessagePartHeader{{Name: "Content-Type", Value: "text/plain; charset=utf-8"}},
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("合计 25.00"))},
			},
			want: "合计 25.00",
		},
		{
			name:    "no body",
			payload: &gmail.MessagePart{MimeType: "text/html", Body: &gmail.MessagePartBody{}},
			want:    "",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractText(tc.payload)
			if err != nil {
				t.Fatalf("extractText: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// fakeGmail serves the three Gmail endpoints the reader calls.
func fakeGmail(t *testing.T, messages map[string]*gmail.Message, modified chan<- string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		resp := gmail.ListMessagesResponse{}
		for id := range messages {
			resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := messages[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(msg)
	})
	mux.HandleFunc("POST /gmail/v1/users/me/messages/{id}/modify", func(w http.ResponseWriter, r *http.Request) {
		modified <- r.PathValue("id")
		_ = json.NewEncoder(w).Encode(messages[r.PathValue("id")])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestReadEmitsUsableMessagesAndAcknowledges(t *testing.T) {
	messages := map[string]*gmail.Message{
		"m1": {
			Id:           "m1",
			InternalDate: 1710400000000,
			Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "微信支付凭证"}},
				Parts: []*gmail.MessagePart{{
					MimeType: "text/html",
					Headers:  []*gmail.MessagePartHeader{{Name: "Content-Type", Value: "text/html; charset=UTF-8"}},
					Body:     &gmail.MessagePartBody{Data: encode("交易成功<br>美团外卖 -32.40<br>支付方式 零钱")},
				}},
			},
		},
		"m2": {
			Id:           "m2",
			InternalDate: 1710400000000,
			Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: encode("您的验证码是 1234")},
			},
		},
	}
	modified := make(chan string, 1)
	srv := fakeGmail(t, messages, modified)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	r := newReader(svc, parser.Default(), Config{
		Queries: []Query{
			{Name: "wechat", Query: "from:wechatpay is:unread", Source: "wechat", Enabled: true},
			{Name: "disabled", Query: "from:nobody", Source: "none", Enabled: false},
		},
		Interval: time.Hour,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *api.Expense, 10)
	ackChan := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- r.Read(ctx, out, ackChan) }()

	var got *api.Expense
	select {
	case got = <-out:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an expense")
	}

	if got.MessageID != "m1" {
		t.Errorf("message id: got %q, want m1", got.MessageID)
	}
	if a := got.Amount.StringFixed(2); a != "32.40" {
		t.Errorf("amount: got %s, want 32.40", a)
	}
	if got.Merchant != "美团外卖" || got.Category != "餐饮" || got.Account != "微信" {
		t.Errorf("got merchant %q category %q account %q", got.Merchant, got.Category, got.Account)
	}
	if got.Source != "wechat" {
		t.Errorf("source: got %q, want wechat", got.Source)
	}
	if want := time.UnixMilli(1710400000000); !got.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", got.Timestamp, want)
	}

	ackChan <- "m1"
	select {
	case id := <-modified:
		if id != "m1" {
			t.Errorf("modified %q, want m1", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the message to be marked read")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Read: got %v, want context.Canceled", err)
	}
	for extra := range out {
		t.Errorf("unexpected expense for message %q", extra.MessageID)
	}
}
