package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/order-relay/internal/delivery"
	"github.com/xenking/order-relay/internal/domain/order"
	"github.com/xenking/order-relay/internal/relay"
	"github.com/xenking/order-relay/internal/render"
)

// --- Mock implementations ---

type mockProcessor struct {
	calls int
	last  *order.Order
	err   error
}

func (m *mockProcessor) Process(_ context.Context, o *order.Order) (*render.Artifact, error) {
	m.calls++
	m.last = o
	if m.err != nil {
		return nil, m.err
	}
	return &render.Artifact{Path: "pedidos/pedido_" + o.Number + ".pdf"}, nil
}

type response struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  string `json:"status"`
}

// --- Helpers ---

const acmeBody = `{"pedido":{"numero":"1042","cliente":"Acme","codigo_cliente":"C01",` +
	`"itens":[{"quantidade":2,"produto":"Widget","preco":9.50}]}}`

func serve(t *testing.T, h *Handler, method, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(method, "/gerar_pdf", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// --- Tests ---

func TestGeneratePDF_Accepted(t *testing.T) {
	p := &mockProcessor{}
	w, resp := serve(t, NewHandler(HandlerConfig{}, p), http.MethodPost, acmeBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	assert.Equal(t, "Pedido processado com sucesso", resp.Message)
	require.Equal(t, 1, p.calls)
	assert.Equal(t, "1042", p.last.Number)
}

func TestGeneratePDF_Options(t *testing.T) {
	p := &mockProcessor{}
	w, resp := serve(t, NewHandler(HandlerConfig{}, p), http.MethodOptions, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, p.calls)
}

func TestGeneratePDF_MethodNotAllowed(t *testing.T) {
	p := &mockProcessor{}
	w, resp := serve(t, NewHandler(HandlerConfig{}, p), http.MethodGet, "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))
	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.Equal(t, 0, p.calls)
}

func TestGeneratePDF_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing pedido", `{"numero":"1042"}`},
		{"missing itens", `{"pedido":{"numero":"1042","cliente":"Acme","codigo_cliente":"C01"}}`},
		{"invalid json", `{"pedido":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProcessor{}
			w, resp := serve(t, NewHandler(HandlerConfig{}, p), http.MethodPost, tt.body)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			require.NotNil(t, resp.Success)
			assert.False(t, *resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, 0, p.calls)
		})
	}
}

func TestGeneratePDF_BodyTooLarge(t *testing.T) {
	p := &mockProcessor{}
	h := NewHandler(HandlerConfig{MaxBodyBytes: 16}, p)
	w, resp := serve(t, h, http.MethodPost, acmeBody)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, resp.Error, "read body")
	assert.Equal(t, 0, p.calls)
}

func TestGeneratePDF_ProcessErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "render error",
			err:     &render.Error{Order: "1042", Err: errors.New("disk full")},
			wantMsg: "render order 1042: disk full",
		},
		{
			name:    "undelivered",
			err:     &relay.DeliveryError{Order: "1042", Channel: "Telegram"},
			wantMsg: "Falha no envio para Telegram",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProcessor{err: tt.err}
			w, resp := serve(t, NewHandler(HandlerConfig{}, p), http.MethodPost, acmeBody)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			require.NotNil(t, resp.Success)
			assert.False(t, *resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

// fakeBotAPI is a minimal Bot API stand-in answering every call with status.
type fakeBotAPI struct {
	calls   atomic.Int32
	status  int
	caption atomic.Value
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		f.caption.Store(r.FormValue("caption"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
}

func newPipeline(t *testing.T, status int) (*Handler, *fakeBotAPI, *render.Renderer) {
	t.Helper()
	api := &fakeBotAPI{status: status}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tg, err := delivery.NewTelegram(delivery.TelegramConfig{
		Token:    "42:test",
		ChatID:   "1",
		Endpoint: srv.URL + "/bot%s/%s",
	}, nil)
	require.NoError(t, err)

	r := render.New(render.Config{Dir: t.TempDir(), Company: render.Company{Name: "Comercial Soares"}})
	svc, err := relay.NewService(r, tg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	return NewHandler(HandlerConfig{}, svc), api, r
}

func TestPipeline_Accepted(t *testing.T) {
	h, api, r := newPipeline(t, http.StatusOK)

	w, resp := serve(t, h, http.MethodPost, acmeBody)

	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	assert.Equal(t, int32(1), api.calls.Load())
	assert.FileExists(t, r.PathFor("1042"))

	caption, _ := api.caption.Load().(string)
	assert.Contains(t, caption, "1042")
	assert.Contains(t, caption, "R$ 19.00")
}

func TestPipeline_MalformedMakesNoNetworkCalls(t *testing.T) {
	h, api, r := newPipeline(t, http.StatusOK)

	w, _ := serve(t, h, http.MethodPost, `{"pedido":{"numero":"1042","cliente":"Acme","codigo_cliente":"C01"}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int32(0), api.calls.Load())
	assert.NoFileExists(t, r.PathFor("1042"))
}

func TestPipeline_EmptyItemsRejected(t *testing.T) {
	h, api, r := newPipeline(t, http.StatusOK)

	w, resp := serve(t, h, http.MethodPost, `{"pedido":{"numero":"1042","cliente":"Acme","codigo_cliente":"C01","itens":[]}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, resp.Error, "pedido.itens")
	assert.Equal(t, int32(0), api.calls.Load())
	assert.NoFileExists(t, r.PathFor("1042"))
}

func TestPipeline_RemoteFailureKeepsArtifact(t *testing.T) {
	h, api, r := newPipeline(t, http.StatusBadGateway)

	w, resp := serve(t, h, http.MethodPost, acmeBody)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Falha no envio para Telegram", resp.Error)
	assert.Equal(t, int32(1), api.calls.Load())
	assert.FileExists(t, r.PathFor("1042"))
}
