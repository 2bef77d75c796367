package auth

import (
	"errors"
	"strings"
	"time"
)

// Header names for signature-authenticated requests.
const (
	ClientInfoHeader    = "DCI-Client-Info"
	AuthSignatureHeader = "DCI-Auth-Signature"
)

// ErrMalformedClientInfo is returned for any deviation from the client-info
// grammar. The message is load-bearing: existing agents match on it exactly.
var ErrMalformedClientInfo = errors.New(
	`DCI-Client-Info should match the following format: "YYYY-MM-DD HH:MI:SSZ/<client_type>/<id>"`)

// ClientInfo is the parsed DCI-Client-Info header: the moment the agent
// signed the request, what kind of agent it is, and which one.
type ClientInfo struct {
	Timestamp time.Time
	Type      string
	ID        string
}

// ParseClientInfo parses a client-info header value. The grammar is exactly
// "YYYY-MM-DD HH:MI:SSZ/<client_type>/<id>": three non-empty slash-separated
// segments, the first a UTC timestamp at second precision with a literal Z.
func ParseClientInfo(value string) (ClientInfo, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return ClientInfo{}, ErrMalformedClientInfo
	}
	tsPart, clientType, clientID := parts[0], parts[1], parts[2]
	if clientType == "" || clientID == "" {
		return ClientInfo{}, ErrMalformedClientInfo
	}
	if !strings.HasSuffix(tsPart, "Z") {
		return ClientInfo{}, ErrMalformedClientInfo
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSuffix(tsPart, "Z"), time.UTC)
	if err != nil {
		return ClientInfo{}, ErrMalformedClientInfo
	}
	return ClientInfo{Timestamp: ts, Type: clientType, ID: clientID}, nil
}
