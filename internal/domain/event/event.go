// Package event defines the notifications relayed from the node daemon to the
// dashboard. An Event is a closed set of variants: consumers type-switch over
// PaymentReceived, ChannelOpened, ChannelClosed and Unknown.
package event

type Kind string

const (
	KindPaymentReceived Kind = "payment_received"
	KindChannelOpened   Kind = "channel_opened"
	KindChannelClosed   Kind = "channel_closed"
	KindUnknown         Kind = "unknown"
)

func (k Kind) String() string { return string(k) }

// Event is implemented only by the variants declared in this package.
type Event interface {
	Kind() Kind
	// Raw returns the upstream frame exactly as received. The slice is shared
	// and must not be modified.
	Raw() []byte
	sealed()
}

// frame is embedded by every variant and keeps the original bytes so the
// relay can forward the frame unmodified.
type frame struct {
	raw []byte
}

func (f frame) Raw() []byte { return f.raw }

func (f frame) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

func (frame) sealed() {}

// Subject returns the identifier an event is about (payment hash or channel id),
// or an empty string.
func Subject(ev Event) string {
	switch e := ev.(type) {
	case PaymentReceived:
		return e.PaymentHash
	case ChannelOpened:
		return e.ChannelID
	case ChannelClosed:
		return e.ChannelID
	default:
		return ""
	}
}
