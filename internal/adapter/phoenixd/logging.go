package phoenixd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"
)

// LoggingService implements [DECORATOR_PATTERN] to add observability to node
// calls without touching the client.
type LoggingService struct {
	next   Service
	logger *slog.Logger
}

func NewLoggingService(next Service, logger *slog.Logger) Service {
	return &LoggingService{next: next, logger: logger}
}

func (m *LoggingService) observe(op string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		m.logger.Warn("[PHOENIXD] call failed",
			slog.String("op", op),
			slog.Any("err", err),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
		return
	}
	m.logger.Debug("[PHOENIXD] call completed",
		slog.String("op", op),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
}

func (m *LoggingService) GetInfo(ctx context.Context) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetInfo(ctx)
	m.observe("GetInfo", start, err)
	return res, err
}

func (m *LoggingService) GetBalance(ctx context.Context) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetBalance(ctx)
	m.observe("GetBalance", start, err)
	return res, err
}

func (m *LoggingService) ListChannels(ctx context.Context) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.ListChannels(ctx)
	m.observe("ListChannels", start, err)
	return res, err
}

func (m *LoggingService) CloseChannel(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.CloseChannel(ctx, p)
	m.observe("CloseChannel", start, err)
	return res, err
}

func (m *LoggingService) EstimateLiquidityFees(ctx context.Context, query url.Values) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.EstimateLiquidityFees(ctx, query)
	m.observe("EstimateLiquidityFees", start, err)
	return res, err
}

func (m *LoggingService) CreateInvoice(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.CreateInvoice(ctx, p)
	m.observe("CreateInvoice", start, err)
	return res, err
}

func (m *LoggingService) CreateOffer(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.CreateOffer(ctx, p)
	m.observe("CreateOffer", start, err)
	return res, err
}

func (m *LoggingService) GetOffer(ctx context.Context) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetOffer(ctx)
	m.observe("GetOffer", start, err)
	return res, err
}

func (m *LoggingService) GetLnAddress(ctx context.Context) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetLnAddress(ctx)
	m.observe("GetLnAddress", start, err)
	return res, err
}

func (m *LoggingService) PayInvoice(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.PayInvoice(ctx, p)
	m.observe("PayInvoice", start, err)
	return res, err
}

func (m *LoggingService) PayOffer(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.PayOffer(ctx, p)
	m.observe("PayOffer", start, err)
	return res, err
}

func (m *LoggingService) PayLnAddress(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.PayLnAddress(ctx, p)
	m.observe("PayLnAddress", start, err)
	return res, err
}

func (m *LoggingService) SendToAddress(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.SendToAddress(ctx, p)
	m.observe("SendToAddress", start, err)
	return res, err
}

func (m *LoggingService) BumpFee(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.BumpFee(ctx, p)
	m.observe("BumpFee", start, err)
	return res, err
}

func (m *LoggingService) ListIncomingPayments(ctx context.Context, query url.Values) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.ListIncomingPayments(ctx, query)
	m.observe("ListIncomingPayments", start, err)
	return res, err
}

func (m *LoggingService) GetIncomingPayment(ctx context.Context, paymentHash string) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetIncomingPayment(ctx, paymentHash)
	m.observe("GetIncomingPayment", start, err)
	return res, err
}

func (m *LoggingService) ListOutgoingPayments(ctx context.Context, query url.Values) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.ListOutgoingPayments(ctx, query)
	m.observe("ListOutgoingPayments", start, err)
	return res, err
}

func (m *LoggingService) GetOutgoingPayment(ctx context.Context, paymentID string) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.GetOutgoingPayment(ctx, paymentID)
	m.observe("GetOutgoingPayment", start, err)
	return res, err
}

func (m *LoggingService) DecodeInvoice(ctx context.Context, invoice string) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.DecodeInvoice(ctx, invoice)
	m.observe("DecodeInvoice", start, err)
	return res, err
}

func (m *LoggingService) DecodeOffer(ctx context.Context, offer string) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.DecodeOffer(ctx, offer)
	m.observe("DecodeOffer", start, err)
	return res, err
}

func (m *LoggingService) LnurlPay(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.LnurlPay(ctx, p)
	m.observe("LnurlPay", start, err)
	return res, err
}

func (m *LoggingService) LnurlWithdraw(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.LnurlWithdraw(ctx, p)
	m.observe("LnurlWithdraw", start, err)
	return res, err
}

func (m *LoggingService) LnurlAuth(ctx context.Context, p Params) (json.RawMessage, error) {
	start := time.Now()
	res, err := m.next.LnurlAuth(ctx, p)
	m.observe("LnurlAuth", start, err)
	return res, err
}
