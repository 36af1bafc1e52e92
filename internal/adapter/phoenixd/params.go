package phoenixd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Params is a request body as sent by the browser. The node only accepts
// form-encoded bodies, so Params are converted before sending.
type Params map[string]any

// Form flattens the params into form values. Nested values are sent as their
// JSON text; nil values are omitted.
func (p Params) Form() url.Values {
	form := url.Values{}
	for k, v := range p {
		switch val := v.(type) {
		case nil:
		case string:
			form.Set(k, val)
		case json.Number:
			form.Set(k, val.String())
		case bool:
			form.Set(k, strconv.FormatBool(val))
		case float64:
			form.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		case int, int32, int64, uint, uint32, uint64:
			form.Set(k, fmt.Sprint(val))
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			form.Set(k, string(b))
		}
	}
	return form
}

// String returns the value of key as text, or "" when absent.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
