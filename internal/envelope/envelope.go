// Package envelope decodes the backend's uniform response wrapper
// {success, message, data} plus the pagination block carried by list
// endpoints and the errors collection carried by validation failures.
package envelope

import (
	"encoding/json"
	"errors"
)

// ErrNotJSON is returned when the body cannot be parsed as an envelope.
var ErrNotJSON = errors.New("envelope: body is not a JSON object")

// Pagination is the list-endpoint paging block.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Envelope is the decoded response wrapper. Data stays raw so each typed
// operation unmarshals its own payload shape.
type Envelope struct {
	Success    bool                       `json:"success"`
	Message    string                     `json:"message"`
	Data       json.RawMessage            `json:"data"`
	Errors     map[string]json.RawMessage `json:"errors"`
	Pagination *Pagination                `json:"pagination"`
}

// Decode parses body into an envelope. Bodies that are not JSON objects
// (proxies, HTML error pages) yield ErrNotJSON rather than a zero envelope.
func Decode(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrNotJSON
	}
	return &env, nil
}

// FirstError returns the most specific failure message available: the
// structured message field when present, otherwise the first entry found in
// the errors collection. Map iteration order is undefined, so when several
// fields failed which one is reported is deliberately unspecified.
func (e *Envelope) FirstError() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	for _, raw := range e.Errors {
		if msg := flatten(raw); msg != "" {
			return msg
		}
	}
	return ""
}

// flatten extracts a message from a field-level error value, which backends
// variously encode as a string, an array of strings, or {message: string}.
func flatten(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}
