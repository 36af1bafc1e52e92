package phoenixd

import (
	"context"
	"encoding/json"
	"net/url"
)

// Service is the node's REST API as used by the dashboard. Responses are
// passed through as JSON; non-2xx answers surface as *model.UpstreamError.
type Service interface {
	GetInfo(ctx context.Context) (json.RawMessage, error)
	GetBalance(ctx context.Context) (json.RawMessage, error)
	ListChannels(ctx context.Context) (json.RawMessage, error)
	CloseChannel(ctx context.Context, p Params) (json.RawMessage, error)
	EstimateLiquidityFees(ctx context.Context, query url.Values) (json.RawMessage, error)

	CreateInvoice(ctx context.Context, p Params) (json.RawMessage, error)
	CreateOffer(ctx context.Context, p Params) (json.RawMessage, error)
	GetOffer(ctx context.Context) (json.RawMessage, error)
	GetLnAddress(ctx context.Context) (json.RawMessage, error)

	PayInvoice(ctx context.Context, p Params) (json.RawMessage, error)
	PayOffer(ctx context.Context, p Params) (json.RawMessage, error)
	PayLnAddress(ctx context.Context, p Params) (json.RawMessage, error)
	SendToAddress(ctx context.Context, p Params) (json.RawMessage, error)
	BumpFee(ctx context.Context, p Params) (json.RawMessage, error)

	ListIncomingPayments(ctx context.Context, query url.Values) (json.RawMessage, error)
	GetIncomingPayment(ctx context.Context, paymentHash string) (json.RawMessage, error)
	ListOutgoingPayments(ctx context.Context, query url.Values) (json.RawMessage, error)
	GetOutgoingPayment(ctx context.Context, paymentID string) (json.RawMessage, error)

	DecodeInvoice(ctx context.Context, invoice string) (json.RawMessage, error)
	DecodeOffer(ctx context.Context, offer string) (json.RawMessage, error)

	LnurlPay(ctx context.Context, p Params) (json.RawMessage, error)
	LnurlWithdraw(ctx context.Context, p Params) (json.RawMessage, error)
	LnurlAuth(ctx context.Context, p Params) (json.RawMessage, error)
}
