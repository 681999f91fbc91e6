package auth

import "strings"

// BearerToken extracts the raw token from an Authorization header value
// or from a bare query value. Websocket clients can't always set
// headers, so the handshake also accepts ?auth_token=.
func BearerToken(header, query string) string {
	if header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return query
}
