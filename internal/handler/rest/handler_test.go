package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/event"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/registry"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
	"github.com/phoenixd-dashboard/dashboard/internal/storage/paymentlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstream struct{ connected bool }

func (u upstream) IsConnected() bool { return u.connected }
func (u upstream) State() model.ConnectionState {
	if u.connected {
		return model.StateConnected
	}
	return model.StateDisconnected
}
func (upstream) Attempts() int { return 0 }

// fakeNode answers like the node's REST API for the handful of calls the
// tests make.
func fakeNode(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /getinfo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nodeId":"02ab","channels":[]}`))
	})
	mux.HandleFunc("GET /getbalance", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"balanceSat":42,"feeCreditSat":1}`))
	})
	mux.HandleFunc("GET /listchannels", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /createinvoice", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("amountSat") != "2100" {
			http.Error(w, "missing amountSat", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"amountSat":2100,"paymentHash":"ff","serialized":"lnbc21u1"}`))
	})
	mux.HandleFunc("POST /payinvoice", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid invoice", http.StatusBadRequest)
	})
	mux.HandleFunc("POST /decodeinvoice", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"amount":2100000}`))
	})
	mux.HandleFunc("GET /payments/incoming/{hash}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"paymentHash":"` + r.PathValue("hash") + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(t *testing.T, nodeURL string, sink paymentlog.Sink) http.Handler {
	t.Helper()
	return newRouterWithConfig(t, nodeURL, sink, nil)
}

func newRouterWithConfig(t *testing.T, nodeURL string, sink paymentlog.Sink, cfg *config.Config) http.Handler {
	t.Helper()
	client, err := phoenixd.NewClient(config.PhoenixdConfig{URL: nodeURL, Password: "pw", Timeout: time.Second}, config.BreakerConfig{})
	require.NoError(t, err)

	hub := registry.NewHub()
	h := NewHandler(Params{
		Node:      client,
		Overview:  service.NewOverviewService(client),
		Deliverer: service.NewDeliveryService(hub, upstream{connected: true}, 8),
		Sink:      sink,
		Logger:    slog.Default(),
		Config:    cfg,
	})
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func disabledSink(t *testing.T) paymentlog.Sink {
	t.Helper()
	sink, err := paymentlog.Open("")
	require.NoError(t, err)
	return sink
}

func TestGetIsPassedThrough(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodGet, "/api/balance", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"balanceSat":42,"feeCreditSat":1}`, rec.Body.String())
}

func TestPostConvertsJSONToForm(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodPost, "/api/invoices", `{"amountSat":2100,"description":"tip"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lnbc21u1")
}

func TestUpstreamErrorKeepsStatusAndMessage(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodPost, "/api/pay/invoice", `{"invoice":"lnbc"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid invoice"}`, rec.Body.String())
}

func TestBadJSONIsRejected(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodPost, "/api/invoices", `{"amountSat":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestDecodeRequiresField(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodPost, "/api/decode/invoice", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/decode/invoice", `{"invoice":"lnbc1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount":2100000}`, rec.Body.String())
}

func TestPathParamIsForwarded(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodGet, "/api/payments/incoming/abc123", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paymentHash":"abc123"}`, rec.Body.String())
}

func TestUnreachableNodeIsBadGateway(t *testing.T) {
	r := newRouter(t, "http://127.0.0.1:1", disabledSink(t))

	rec := do(t, r, http.MethodGet, "/api/info", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOverviewCombinesCalls(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodGet, "/api/overview", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"info":{"nodeId":"02ab","channels":[]},"balance":{"balanceSat":42,"feeCreditSat":1},"channels":[]}`, rec.Body.String())
}

func TestStatusReportsRelay(t *testing.T) {
	r := newRouter(t, fakeNode(t).URL, disabledSink(t))

	rec := do(t, r, http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var st model.RelayStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.UpstreamConnected)
	assert.Equal(t, "connected", st.UpstreamState)
	assert.Zero(t, st.Subscribers)
}

func TestPaymentLog(t *testing.T) {
	node := fakeNode(t)

	rec := do(t, newRouter(t, node.URL, disabledSink(t)), http.MethodGet, "/api/payments/log", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sink, err := paymentlog.NewSQLSink(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	ev, err := event.Decode([]byte(`{"type":"payment_received","amountSat":77}`))
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), paymentlog.FromPayment(ev.(event.PaymentReceived), time.Now())))

	r := newRouter(t, node.URL, sink)
	rec = do(t, r, http.MethodGet, "/api/payments/log?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []paymentlog.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, int64(77), recs[0].AmountSat)

	rec = do(t, r, http.MethodGet, "/api/payments/log?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenGuardsEveryAPIRoute(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{WSToken: "s3cret"}}
	r := newRouterWithConfig(t, fakeNode(t).URL, disabledSink(t), cfg)

	for _, target := range []string{"/api/pay/invoice", "/api/send/onchain", "/api/channels/close"} {
		rec := do(t, r, http.MethodPost, target, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/balance", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/status?token=s3cret", "").Code)
}
