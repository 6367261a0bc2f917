package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/order-relay/internal/domain/order"
)

const testToken = "123:secret"

type sentDocument struct {
	path      string
	chatID    string
	caption   string
	parseMode string
	filename  string
	content   []byte
}

// fakeBotAPI records sendDocument calls and answers with the given status and body.
type fakeBotAPI struct {
	calls  atomic.Int32
	last   sentDocument
	status int
	body   string
	delay  time.Duration
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		f.last = sentDocument{
			path:      r.URL.Path,
			chatID:    r.FormValue("chat_id"),
			caption:   r.FormValue("caption"),
			parseMode: r.FormValue("parse_mode"),
		}
		if file, hdr, err := r.FormFile("document"); err == nil {
			f.last.filename = hdr.Filename
			f.last.content, _ = io.ReadAll(file)
			_ = file.Close()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, f.body)
}

const okBody = `{"ok":true,"result":{"message_id":7,"date":1760800000,"chat":{"id":5044313884,"type":"private"}}}`

func newFakeBotAPI(t *testing.T, status int, body string) (*fakeBotAPI, string) {
	t.Helper()
	f := &fakeBotAPI{status: status, body: body}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL + "/bot%s/%s"
}

func newTestTelegram(t *testing.T, endpoint, chatID string) *Telegram {
	t.Helper()
	tg, err := NewTelegram(TelegramConfig{
		Token:    testToken,
		ChatID:   chatID,
		Endpoint: endpoint,
		Timeout:  time.Second,
	}, nil)
	require.NoError(t, err)
	tg.now = func() time.Time { return time.Date(2026, 10, 18, 9, 5, 0, 0, time.Local) }
	return tg
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pedido_1042.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644))
	return path
}

func testOrder() *order.Order {
	return &order.Order{
		Number:       "1042",
		CustomerName: "Acme",
		CustomerCode: "C01",
		Items: []order.LineItem{
			{Quantity: 2, Product: "Widget", UnitPrice: decimal.RequireFromString("9.50")},
		},
	}
}

func TestTelegram_Deliver(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	tg := newTestTelegram(t, endpoint, "5044313884")

	ok, err := tg.Deliver(context.Background(), writeArtifact(t), testOrder(), decimal.RequireFromString("19"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int32(1), api.calls.Load())
	assert.Equal(t, "/bot"+testToken+"/sendDocument", api.last.path)
	assert.Equal(t, "5044313884", api.last.chatID)
	assert.Equal(t, "Markdown", api.last.parseMode)
	assert.Equal(t, "pedido_1042.pdf", api.last.filename)
	assert.Equal(t, "%PDF-1.3 test", string(api.last.content))
	assert.Equal(t, "📄 *Pedido 1042*\n"+
		"👤 Cliente: Acme\n"+
		"🔢 Código: C01\n"+
		"💰 Total: R$ 19.00\n"+
		"⏰ 18/10/2026 09:05", api.last.caption)
}

func TestTelegram_EscapedCaption(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	tg := newTestTelegram(t, endpoint, "1")
	o := testOrder()
	o.CustomerName = "foo_bar"

	ok, err := tg.Deliver(context.Background(), writeArtifact(t), o, decimal.NewFromInt(19))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, api.last.caption, `Cliente: foo\_bar`)
}

func TestTelegram_ChannelUsername(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	tg := newTestTelegram(t, endpoint, "@pedidos")

	ok, err := tg.Deliver(context.Background(), writeArtifact(t), testOrder(), decimal.NewFromInt(19))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "@pedidos", api.last.chatID)
}

func TestTelegram_RemoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"ok":true,"result":{}}`},
		{"bad request", http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`},
		{"api not ok", http.StatusOK, `{"ok":false,"error_code":403,"description":"Forbidden"}`},
		{"garbage body", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, endpoint := newFakeBotAPI(t, tt.status, tt.body)
			tg := newTestTelegram(t, endpoint, "1")

			path := writeArtifact(t)
			ok, err := tg.Deliver(context.Background(), path, testOrder(), decimal.NewFromInt(19))
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, int32(1), api.calls.Load())
			assert.FileExists(t, path)
		})
	}
}

func TestTelegram_Timeout(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	api.delay = 300 * time.Millisecond

	tg, err := NewTelegram(TelegramConfig{
		Token:    testToken,
		ChatID:   "1",
		Endpoint: endpoint,
		Timeout:  50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ok, err := tg.Deliver(context.Background(), writeArtifact(t), testOrder(), decimal.NewFromInt(19))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTelegram_MissingArtifact(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	tg := newTestTelegram(t, endpoint, "1")

	ok, err := tg.Deliver(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), testOrder(), decimal.Zero)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(0), api.calls.Load())
}

func TestTelegram_DirectoryIsNotAnArtifact(t *testing.T) {
	api, endpoint := newFakeBotAPI(t, http.StatusOK, okBody)
	tg := newTestTelegram(t, endpoint, "1")

	ok, err := tg.Deliver(context.Background(), t.TempDir(), testOrder(), decimal.Zero)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(0), api.calls.Load())
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{ChatID: "1"}, nil)
	assert.Error(t, err)
	_, err = NewTelegram(TelegramConfig{Token: "t"}, nil)
	assert.Error(t, err)
}

func TestTelegram_Redact(t *testing.T) {
	tg := newTestTelegram(t, "http://x/bot%s/%s", "1")
	got := tg.redact(`Post "https://api.telegram.org/bot123:secret/sendDocument": timeout`)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "bot<token>/sendDocument")
}
