package xdr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned when the API answers with a non-2xx status or with an
// error description inside the reply envelope.
type APIError struct {
	StatusCode int
	Path       string
	Code       string
	Message    string
	Extra      string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "XDR API %s failed (status %d", e.Path, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Extra != "" {
		fmt.Fprintf(&b, " [%s]", e.Extra)
	}
	return b.String()
}

// fillFromReply reads err_code/err_msg/err_extra from an object reply and
// reports whether the reply described an error.
func (e *APIError) fillFromReply(reply json.RawMessage) bool {
	if len(reply) == 0 || reply[0] != '{' {
		return false
	}
	var fields map[string]interface{}
	if err := decodeJSON(reply, &fields); err != nil {
		return false
	}
	code, hasCode := fields["err_code"]
	msg, hasMsg := fields["err_msg"]
	if !hasCode && !hasMsg {
		return false
	}
	if hasCode && code != nil {
		e.Code = stringify(code)
	}
	if hasMsg && msg != nil {
		e.Message = stringify(msg)
	}
	if extra, ok := fields["err_extra"]; ok && extra != nil {
		e.Extra = stringify(extra)
	}
	return true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
