package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/batch"
	"github.com/ArionMiles/spendscan/pkg/command"
	"github.com/ArionMiles/spendscan/pkg/logging"
	"github.com/ArionMiles/spendscan/pkg/ocr"
	"github.com/ArionMiles/spendscan/pkg/parser"
	"github.com/ArionMiles/spendscan/pkg/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var frozenNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

// fakeRecognizer returns canned text for uploads whose name ends with a key.
type fakeRecognizer map[string]string

func (f fakeRecognizer) Recognize(_ context.Context, path string) ([]ocr.Observation, error) {
	for suffix, text := range f {
		if strings.HasSuffix(path, suffix) {
			return []ocr.Observation{{Text: text, Confidence: 0.9}}, nil
		}
	}
	return nil, ocr.ErrNoTextFound
}

type brokenStore struct{}

func (brokenStore) Save(context.Context, *api.Expense) error { return errors.New("disk full") }

func newTestServer(t *testing.T, st api.Store, cfg Config) *Server {
	t.Helper()
	clock := func() time.Time { return frozenNow }
	p := parser.Default(parser.WithClock(clock))
	dir := api.DefaultDirectory()

	proc := batch.New(batch.Config{
		Recognizer: fakeRecognizer{
			"meituan.png": "美团外卖 -32.40\n支付方式 零钱",
			"didi.png":    "滴滴出行 -12.60",
		},
		Parser:   p,
		Resolver: command.NewResolver(p, dir, clock),
		Store:    st,
	}, logging.Discard())

	s, err := New(cfg, Deps{Parser: p, Directory: dir, Store: st, Batch: proc, Clock: clock}, logging.Discard())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{Store: store.NewMemory()}, nil)
	assert.Error(t, err)
	_, err = New(Config{}, Deps{Parser: parser.Default()}, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), Config{})

	w, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	w, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParse(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), Config{})

	t.Run("single text", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(`{"text":"美团外卖 -32.40\n支付方式 零钱"}`))
		req.Header.Set("Content-Type", "application/json")
		w, body := do(t, s, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["usable"])
		result := body["result"].(map[string]any)
		assert.Equal(t, "32.4", result["amount"])
		assert.Equal(t, "美团外卖", result["merchant_name"])
		assert.Equal(t, "餐饮", body["category"].(map[string]any)["name"])
		assert.Equal(t, "微信", body["account"].(map[string]any)["name"])
	})

	t.Run("many texts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(`{"texts":["总额:32.40","17:04"]}`))
		req.Header.Set("Content-Type", "application/json")
		w, body := do(t, s, req)

		require.Equal(t, http.StatusOK, w.Code)
		results := body["results"].([]any)
		require.Len(t, results, 2)
		assert.Equal(t, true, results[0].(map[string]any)["usable"])
		assert.Equal(t, false, results[1].(map[string]any)["usable"])
	})

	t.Run("empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w, _ := do(t, s, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		w, _ := do(t, s, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAddExpense(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantStatus   int
		wantAmount   string
		wantCategory string
		wantNote     string
		wantErr      string
	}{
		{
			name:         "explicit parameters",
			query:        "amount=25&category=交通&account=支付宝&note=打车",
			wantStatus:   http.StatusCreated,
			wantAmount:   "25",
			wantCategory: "交通",
			wantNote:     "打车",
		},
		{
			name:         "text overrides parameters",
			query:        "amount=1&text=" + "星巴克 ¥45.00",
			wantStatus:   http.StatusCreated,
			wantAmount:   "45",
			wantCategory: "餐饮",
			wantNote:     "星巴克",
		},
		{
			name:         "defaults",
			query:        "amount=9.9",
			wantStatus:   http.StatusCreated,
			wantAmount:   "9.9",
			wantCategory: api.DefaultCategory,
			wantNote:     command.DefaultNote,
		},
		{
			name:       "missing amount",
			query:      "note=x",
			wantStatus: http.StatusBadRequest,
			wantErr:    command.ErrInvalidAmount.Error(),
		},
		{
			name:       "non numeric amount",
			query:      "amount=abc",
			wantStatus: http.StatusBadRequest,
			wantErr:    command.ErrInvalidAmount.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemory()
			s := newTestServer(t, st, Config{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/expenses/add", nil)
			q := req.URL.Query()
			for _, kv := range strings.Split(tc.query, "&") {
				k, v, _ := strings.Cut(kv, "=")
				q.Set(k, v)
			}
			req.URL.RawQuery = q.Encode()

			w, body := do(t, s, req)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())

			if tc.wantErr != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tc.wantErr, body["error"])
				assert.Equal(t, 0, st.Len())
				return
			}

			expense := body["expense"].(map[string]any)
			assert.Equal(t, tc.wantAmount, expense["amount"])
			assert.Equal(t, tc.wantCategory, expense["category"])
			assert.Equal(t, tc.wantNote, expense["note"])
			assert.Equal(t, 1, st.Len())
		})
	}
}

func TestAddExpenseSaveFailure(t *testing.T) {
	s := newTestServer(t, brokenStore{}, Config{})

	w, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/expenses/add?amount=5", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "保存失败: disk full", body["error"])
}

func TestListExpenses(t *testing.T) {
	st := store.NewMemory()
	s := newTestServer(t, st, Config{})

	for _, amount := range []string{"1", "2", "3"} {
		w, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/expenses/add?amount="+amount, nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/expenses?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["expenses"], 2)

	w, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/expenses?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noList := newTestServer(t, brokenStore{}, Config{})
	w, _ = do(t, noList, httptest.NewRequest(http.MethodGet, "/api/v1/expenses", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestDirectory(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), Config{})

	w, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/directory", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["categories"], len(api.DefaultDirectory().Categories))
	assert.Len(t, body["accounts"], len(api.DefaultDirectory().Accounts))
}

func multipartImages(t *testing.T, names ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestBatch(t *testing.T) {
	t.Run("partial success", func(t *testing.T) {
		st := store.NewMemory()
		s := newTestServer(t, st, Config{})

		w, body := do(t, s, multipartImages(t, "meituan.png", "didi.png", "blank.png"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "成功处理 2 张截图，总金额 ¥45.00", body["message"])
		assert.Equal(t, 2, st.Len())

		summary := body["summary"].(map[string]any)
		assert.Len(t, summary["errors"], 1)
	})

	t.Run("nothing recognized", func(t *testing.T) {
		s := newTestServer(t, store.NewMemory(), Config{})

		w, body := do(t, s, multipartImages(t, "blank.png"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, false, body["success"])
		assert.True(t, strings.HasPrefix(body["message"].(string), "处理失败: "))
	})

	t.Run("no files", func(t *testing.T) {
		s := newTestServer(t, store.NewMemory(), Config{})

		w, body := do(t, s, multipartImages(t))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ocr.ErrInvalidImage.Error(), body["error"])
	})
}

func TestBatchWithoutProcessor(t *testing.T) {
	s, err := New(Config{}, Deps{Parser: parser.Default(), Store: store.NewMemory()}, logging.Discard())
	require.NoError(t, err)

	w, _ := do(t, s, multipartImages(t, "a.png"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), Config{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		w, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
