// Package rest exposes the node's REST API to the dashboard under /api.
// Requests are JSON; they are forwarded to the node and its answers are
// passed through unchanged.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phoenixd-dashboard/dashboard/config"
	httpsrv "github.com/phoenixd-dashboard/dashboard/infra/server/http"
	"github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/service"
	"github.com/phoenixd-dashboard/dashboard/internal/storage/paymentlog"
	"go.uber.org/fx"
)

const maxBodySize = 1 << 20

type Handler struct {
	node      phoenixd.Service
	overview  service.Overviewer
	deliverer service.Deliverer
	sink      paymentlog.Sink
	logger    *slog.Logger
	token     string
}

type Params struct {
	fx.In

	Node      phoenixd.Service
	Overview  service.Overviewer
	Deliverer service.Deliverer
	Sink      paymentlog.Sink
	Logger    *slog.Logger
	Config    *config.Config `optional:"true"`
}

func NewHandler(p Params) *Handler {
	var token string
	if p.Config != nil {
		token = p.Config.Server.WSToken
	}
	return &Handler{
		token:     token,
		node:      p.Node,
		overview:  p.Overview,
		deliverer: p.Deliverer,
		sink:      p.Sink,
		logger:    p.Logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// payments and channel closes spend funds; they share the stream token
		r.Use(httpsrv.TokenAuth(h.token))

		r.Get("/info", h.get(h.node.GetInfo))
		r.Get("/balance", h.get(h.node.GetBalance))
		r.Get("/channels", h.get(h.node.ListChannels))
		r.Get("/liquidity/fees", h.query(h.node.EstimateLiquidityFees))
		r.Get("/offer", h.get(h.node.GetOffer))
		r.Get("/lnaddress", h.get(h.node.GetLnAddress))
		r.Get("/payments/incoming", h.query(h.node.ListIncomingPayments))
		r.Get("/payments/incoming/{paymentHash}", h.byID("paymentHash", h.node.GetIncomingPayment))
		r.Get("/payments/outgoing", h.query(h.node.ListOutgoingPayments))
		r.Get("/payments/outgoing/{paymentId}", h.byID("paymentId", h.node.GetOutgoingPayment))

		r.Post("/channels/close", h.post(h.node.CloseChannel))
		r.Post("/invoices", h.post(h.node.CreateInvoice))
		r.Post("/offers", h.post(h.node.CreateOffer))
		r.Post("/pay/invoice", h.post(h.node.PayInvoice))
		r.Post("/pay/offer", h.post(h.node.PayOffer))
		r.Post("/pay/lnaddress", h.post(h.node.PayLnAddress))
		r.Post("/send/onchain", h.post(h.node.SendToAddress))
		r.Post("/bumpfee", h.post(h.node.BumpFee))
		r.Post("/decode/invoice", h.decode("invoice", h.node.DecodeInvoice))
		r.Post("/decode/offer", h.decode("offer", h.node.DecodeOffer))
		r.Post("/lnurl/pay", h.post(h.node.LnurlPay))
		r.Post("/lnurl/withdraw", h.post(h.node.LnurlWithdraw))
		r.Post("/lnurl/auth", h.post(h.node.LnurlAuth))

		r.Get("/overview", h.Overview)
		r.Get("/status", h.Status)
		r.Get("/payments/log", h.PaymentLog)
	})
}

func (h *Handler) get(fn func(context.Context) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r.Context())
		h.respond(w, res, err)
	}
}

func (h *Handler) query(fn func(context.Context, url.Values) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r.Context(), r.URL.Query())
		h.respond(w, res, err)
	}
}

func (h *Handler) byID(param string, fn func(context.Context, string) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r.Context(), chi.URLParam(r, param))
		h.respond(w, res, err)
	}
}

func (h *Handler) post(fn func(context.Context, phoenixd.Params) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := readParams(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := fn(r.Context(), p)
		h.respond(w, res, err)
	}
}

func (h *Handler) decode(field string, fn func(context.Context, string) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := readParams(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		value := p.String(field)
		if value == "" {
			writeError(w, http.StatusBadRequest, field+" is required")
			return
		}
		res, err := fn(r.Context(), value)
		h.respond(w, res, err)
	}
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overview.Overview(r.Context())
	if err != nil {
		h.respond(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// Status reports relay connectivity, not node health.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deliverer.Status())
}

func (h *Handler) PaymentLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := h.sink.Recent(r.Context(), limit)
	switch {
	case errors.Is(err, paymentlog.ErrDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("[REST] payment log read failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "payment log unavailable")
	default:
		writeJSON(w, http.StatusOK, recs)
	}
}

// readParams decodes a JSON object body. An empty body yields empty params.
func readParams(w http.ResponseWriter, r *http.Request) (phoenixd.Params, error) {
	p := phoenixd.Params{}
	if r.Body == nil {
		return p, nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return phoenixd.Params{}, nil
		}
		return nil, errors.New("request body must be a JSON object")
	}
	return p, nil
}

// respond maps node failures: an UpstreamError keeps the node's status and
// message, a transport failure becomes 502.
func (h *Handler) respond(w http.ResponseWriter, res json.RawMessage, err error) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res)
		return
	}

	var (
		ue      *model.UpstreamError
		connErr *model.ConnectionError
	)
	switch {
	case errors.As(err, &ue):
		writeError(w, ue.Status, ue.Message)
	case errors.As(err, &connErr):
		writeError(w, http.StatusBadGateway, "phoenixd unreachable")
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.Error("[REST] request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
