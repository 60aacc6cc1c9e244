package transport

import "github.com/fxtrail/fxclient/internal/envelope"

// FailureKind classifies call outcomes for root-level error mapping.
type FailureKind int

const (
	// FailureNone marks a successful call.
	FailureNone FailureKind = iota
	// FailureNetwork covers transport-level errors: DNS, timeouts, resets.
	FailureNetwork
	// FailureUnauthorized is a 401 that survived the refresh path (the retry
	// also came back 401, or no refresher is wired).
	FailureUnauthorized
	// FailureSessionExpired is the hard authentication failure: refresh was
	// impossible or failed, and the session has been cleared.
	FailureSessionExpired
	// FailureForbidden is a 403; never retried, never refreshed.
	FailureForbidden
	// FailureNotFound is a 404.
	FailureNotFound
	// FailureValidation is a 422 with a field-level message when available.
	FailureValidation
	// FailureServer covers 500 and other 5xx responses.
	FailureServer
	// FailureDecode means the success body did not carry a readable envelope.
	FailureDecode
	// FailureHTTP covers any remaining non-2xx status.
	FailureHTTP
)

// Result is the structured outcome of one call, success or failure. Err is
// populated only for network-level failures where no response exists.
type Result struct {
	Status   int
	Failure  FailureKind
	Err      error
	Envelope *envelope.Envelope
	Body     []byte
	// Retried reports whether the refresh-and-retry path ran for this call.
	Retried bool
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Failure == FailureNone
}

// Message returns the backend's envelope message, if any was decodable.
func (r Result) Message() string {
	if r.Envelope == nil {
		return ""
	}
	return r.Envelope.Message
}
