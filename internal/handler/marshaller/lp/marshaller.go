package lpmarshaller

import (
	"encoding/json"
)

// Response defines the top-level JSON object to support event batching.
// Each element is an upstream frame exactly as relayed.
type Response struct {
	Events []json.RawMessage `json:"events"`
}

// MarshallEvents wraps a batch of raw frames into one JSON document.
func MarshallEvents(frames [][]byte) ([]byte, error) {
	res := Response{
		Events: make([]json.RawMessage, 0, len(frames)),
	}
	for _, f := range frames {
		res.Events = append(res.Events, json.RawMessage(f))
	}
	return json.Marshal(res)
}
