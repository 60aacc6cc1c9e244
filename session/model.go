package session

// User is the identity carried by an authenticated session. The backend owns
// the canonical profile; this is only what the client needs for display and
// request attribution.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the value snapshot returned by [Manager.Snapshot].
//
// Invariant: Authenticated is true iff both tokens are non-empty and a user
// identity is present. A Session violating this is never observable through
// Manager accessors.
type Session struct {
	User          *User
	AccessToken   string
	RefreshToken  string
	Authenticated bool
}

// Record is the serialized mirror of a session written to durable storage.
// Field names match the wire shape the backend's web clients share, so a
// record written by one client generation remains readable by the next.
type Record struct {
	User            *User  `json:"user"`
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	Email           string `json:"email"`
	UserID          string `json:"userId"`
}

// Complete reports whether the record carries everything needed to restore
// an authenticated session. Partial records are discarded on rehydration.
func (r *Record) Complete() bool {
	return r != nil &&
		r.IsAuthenticated &&
		r.AccessToken != "" &&
		r.RefreshToken != "" &&
		r.User != nil &&
		r.User.ID != ""
}
