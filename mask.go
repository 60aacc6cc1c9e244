package fxclient

import "strings"

// MaskEmail obscures the local part of an address for display in audit
// views: "alice@example.com" becomes "ali***@example.com". Inputs without
// an "@" are returned unchanged.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}
