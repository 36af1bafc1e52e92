package phoenixd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
	"github.com/phoenixd-dashboard/dashboard/internal/metrics"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/phoenixd-dashboard/dashboard/internal/adapter/phoenixd"
	maxResponseSize = 8 << 20
	defaultTimeout  = 30 * time.Second
)

// Interface guard
var _ Service = (*Client)(nil)

// Client talks to the node's REST API. Every call is one authenticated round
// trip guarded by a circuit breaker and recorded as a span. Decode results
// are cached since an invoice or offer always decodes the same way.
type Client struct {
	baseURL  *url.URL
	password string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	decoded  *lru.Cache[string, json.RawMessage]
	tracer   trace.Tracer
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewClient(cfg config.PhoenixdConfig, bcfg config.BreakerConfig, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("phoenixd url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	size := cfg.DecodeCacheSize
	if size <= 0 {
		size = 512
	}
	// [MEMORY_MANAGEMENT] bounded cache for hot invoices and offers
	cache, err := lru.New[string, json.RawMessage](size)
	if err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}

	c := &Client{
		baseURL:  base,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		decoded:  cache,
		tracer:   otel.Tracer(tracerName),
	}
	c.breaker = gobreaker.NewCircuitBreaker(breakerSettings(base.Host, bcfg))
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func breakerSettings(name string, cfg config.BreakerConfig) gobreaker.Settings {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.Settings{
		Name:        "phoenixd:" + name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Only transport faults and 5xx count against the node.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var ue *model.UpstreamError
			return errors.As(err, &ue) && ue.Status < http.StatusInternalServerError
		},
	}
}

func (c *Client) GetInfo(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "getinfo", "/getinfo", nil)
}

func (c *Client) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "getbalance", "/getbalance", nil)
}

func (c *Client) ListChannels(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "listchannels", "/listchannels", nil)
}

func (c *Client) CloseChannel(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "closechannel", "/closechannel", p)
}

func (c *Client) EstimateLiquidityFees(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "estimateliquidityfees", "/estimateliquidityfees", query)
}

func (c *Client) CreateInvoice(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "createinvoice", "/createinvoice", p)
}

func (c *Client) CreateOffer(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "createoffer", "/createoffer", p)
}

func (c *Client) GetOffer(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "getoffer", "/getoffer", nil)
}

func (c *Client) GetLnAddress(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "getlnaddress", "/getlnaddress", nil)
}

func (c *Client) PayInvoice(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "payinvoice", "/payinvoice", p)
}

func (c *Client) PayOffer(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "payoffer", "/payoffer", p)
}

func (c *Client) PayLnAddress(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "paylnaddress", "/paylnaddress", p)
}

func (c *Client) SendToAddress(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "sendtoaddress", "/sendtoaddress", p)
}

func (c *Client) BumpFee(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "bumpfee", "/bumpfee", p)
}

func (c *Client) ListIncomingPayments(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "listincomingpayments", "/payments/incoming", query)
}

func (c *Client) GetIncomingPayment(ctx context.Context, paymentHash string) (json.RawMessage, error) {
	return c.get(ctx, "getincomingpayment", "/payments/incoming/"+url.PathEscape(paymentHash), nil)
}

func (c *Client) ListOutgoingPayments(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.get(ctx, "listoutgoingpayments", "/payments/outgoing", query)
}

func (c *Client) GetOutgoingPayment(ctx context.Context, paymentID string) (json.RawMessage, error) {
	return c.get(ctx, "getoutgoingpayment", "/payments/outgoing/"+url.PathEscape(paymentID), nil)
}

func (c *Client) DecodeInvoice(ctx context.Context, invoice string) (json.RawMessage, error) {
	return c.cachedDecode(ctx, "decodeinvoice", "/decodeinvoice", "invoice", invoice)
}

func (c *Client) DecodeOffer(ctx context.Context, offer string) (json.RawMessage, error) {
	return c.cachedDecode(ctx, "decodeoffer", "/decodeoffer", "offer", offer)
}

func (c *Client) LnurlPay(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "lnurlpay", "/lnurlpay", p)
}

func (c *Client) LnurlWithdraw(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "lnurlwithdraw", "/lnurlwithdraw", p)
}

func (c *Client) LnurlAuth(ctx context.Context, p Params) (json.RawMessage, error) {
	return c.post(ctx, "lnurlauth", "/lnurlauth", p)
}

// cachedDecode follows a cache-aside strategy; only successful decodes are kept.
func (c *Client) cachedDecode(ctx context.Context, op, path, field, value string) (json.RawMessage, error) {
	key := field + ":" + value
	if cached, ok := c.decoded.Get(key); ok {
		return cached, nil
	}
	res, err := c.post(ctx, op, path, Params{field: value})
	if err != nil {
		return nil, err
	}
	c.decoded.Add(key, res)
	return res, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, op, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, op, path string, p Params) (json.RawMessage, error) {
	return c.do(ctx, op, http.MethodPost, path, nil, p.Form())
}

func (c *Client) do(ctx context.Context, op, method, path string, query, form url.Values) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "phoenixd."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("phoenixd.path", path),
		),
	)
	defer span.End()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, op, method, path, query, form)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &model.UpstreamError{Status: http.StatusServiceUnavailable, Message: "phoenixd unavailable: " + err.Error()}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncUpstreamRequest(op, statusClass(err))
		return nil, err
	}

	metrics.IncUpstreamRequest(op, "2xx")
	return res.(json.RawMessage), nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query, form url.Values) (json.RawMessage, error) {
	u := *c.baseURL
	rawPath := u.EscapedPath() + path
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	u.Path, u.RawPath = decoded, rawPath
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.SetBasicAuth("", c.password)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.ConnectionError{Endpoint: c.baseURL.Host, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &model.ConnectionError{Endpoint: c.baseURL.Host, Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &model.UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	return asJSON(data), nil
}

// asJSON passes JSON bodies through and wraps plain-text answers (a txid,
// for example) as a JSON string.
func asJSON(data []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(string(trimmed))
	return b
}

func statusClass(err error) string {
	var ue *model.UpstreamError
	if errors.As(err, &ue) {
		return fmt.Sprintf("%dxx", ue.Status/100)
	}
	return "transport"
}
