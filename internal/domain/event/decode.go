package event

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/phoenixd-dashboard/dashboard/internal/domain/model"
)

var paymentHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type envelope struct {
	Type *string `json:"type"`
}

type paymentReceivedFrame struct {
	AmountSat   *int64 `json:"amountSat"`
	PaymentHash string `json:"paymentHash"`
	PayerNote   string `json:"payerNote"`
	PayerKey    string `json:"payerKey"`
	ExternalID  string `json:"externalId"`
	Timestamp   int64  `json:"timestamp"`
}

type channelFrame struct {
	ChannelID string `json:"channelId"`
	Reason    string `json:"reason"`
}

// Decode classifies one upstream text frame. Malformed frames yield a
// *model.ParseError; unrecognised but well-formed frames yield Unknown.
func Decode(data []byte) (Event, error) {
	raw := bytes.Clone(bytes.TrimSpace(data))
	if len(raw) == 0 || raw[0] != '{' {
		return nil, &model.ParseError{Frame: raw, Reason: "frame is not a JSON object"}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &model.ParseError{Frame: raw, Reason: "invalid json", Err: err}
	}
	if env.Type == nil || *env.Type == "" {
		return nil, &model.ParseError{Frame: raw, Reason: "missing type"}
	}

	switch Kind(*env.Type) {
	case KindPaymentReceived:
		return decodePaymentReceived(raw)
	case KindChannelOpened:
		var f channelFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &model.ParseError{Frame: raw, Reason: "invalid channel_opened", Err: err}
		}
		return ChannelOpened{frame: frame{raw: raw}, ChannelID: f.ChannelID}, nil
	case KindChannelClosed:
		var f channelFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &model.ParseError{Frame: raw, Reason: "invalid channel_closed", Err: err}
		}
		return ChannelClosed{frame: frame{raw: raw}, ChannelID: f.ChannelID, Reason: f.Reason}, nil
	default:
		return Unknown{frame: frame{raw: raw}, Type: *env.Type}, nil
	}
}

func decodePaymentReceived(raw []byte) (Event, error) {
	var f paymentReceivedFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &model.ParseError{Frame: raw, Reason: "invalid payment_received", Err: err}
	}
	if f.AmountSat == nil {
		return nil, &model.ParseError{Frame: raw, Reason: "payment_received without amountSat"}
	}
	if *f.AmountSat < 0 {
		return nil, &model.ParseError{Frame: raw, Reason: "negative amountSat"}
	}
	if f.PaymentHash != "" && !paymentHashPattern.MatchString(f.PaymentHash) {
		return nil, &model.ParseError{Frame: raw, Reason: "paymentHash is not 64 lowercase hex chars"}
	}

	return PaymentReceived{
		frame:       frame{raw: raw},
		AmountSat:   *f.AmountSat,
		PaymentHash: f.PaymentHash,
		PayerNote:   f.PayerNote,
		PayerKey:    f.PayerKey,
		ExternalID:  f.ExternalID,
		Timestamp:   f.Timestamp,
	}, nil
}
