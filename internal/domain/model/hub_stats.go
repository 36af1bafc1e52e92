package model

// RelayStatus is the connectivity snapshot exposed to the dashboard badge.
type RelayStatus struct {
	UpstreamConnected bool   `json:"upstreamConnected"`
	UpstreamState     string `json:"upstreamState"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
	Subscribers       int    `json:"subscribers"`
}
