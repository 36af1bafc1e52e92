package event

// [GUARD] Every variant satisfies Event.
var (
	_ Event = PaymentReceived{}
	_ Event = ChannelOpened{}
	_ Event = ChannelClosed{}
	_ Event = Unknown{}
)

// PaymentReceived is emitted when an incoming payment settles on the node.
type PaymentReceived struct {
	frame
	AmountSat   int64
	PaymentHash string // 64 lowercase hex chars, empty when absent
	PayerNote   string
	PayerKey    string
	ExternalID  string
	Timestamp   int64 // epoch millis, zero when absent
}

func (PaymentReceived) Kind() Kind { return KindPaymentReceived }

// ChannelOpened is emitted when a channel to the LSP becomes usable.
type ChannelOpened struct {
	frame
	ChannelID string
}

func (ChannelOpened) Kind() Kind { return KindChannelOpened }

// ChannelClosed is emitted when a channel is closed.
type ChannelClosed struct {
	frame
	ChannelID string
	Reason    string
}

func (ChannelClosed) Kind() Kind { return KindChannelClosed }

// Unknown preserves a frame whose type the relay does not recognise.
type Unknown struct {
	frame
	Type string
}

func (Unknown) Kind() Kind { return KindUnknown }
