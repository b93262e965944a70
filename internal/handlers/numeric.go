package handlers

import (
	"bytes"
	"encoding/json"
)

// FlexNumber accepts either a JSON number or a JSON string and keeps the raw
// text, so form-style input like "2" or "" can be coerced by the service.
type FlexNumber string

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = FlexNumber(s)
		return nil
	}
	*n = FlexNumber(b)
	return nil
}

func (n *FlexNumber) ptr() *string {
	if n == nil {
		return nil
	}
	s := string(*n)
	return &s
}
