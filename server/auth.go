package server

import "strconv"

// Symmetric keyed-hash constants from the wire protocol.
const (
	ServerKey uint16 = 54621
	ClientKey uint16 = 45328
)

// computeHash implements h(k, u) = ((sum of bytes of u) * 1000 + k) mod
// 2^16. Go's uint16 arithmetic wraps on overflow the same way a fixed
// 16-bit integer type does, so no explicit masking is needed.
func computeHash(key uint16, username string) uint16 {
	var sum uint16
	for i := 0; i < len(username); i++ {
		sum += uint16(username[i])
	}
	return sum*1000 + key
}

// Authenticator runs the handshake described in §4.3: read a username,
// challenge with h(SERVER_KEY, u), and validate the peer's response
// against h(CLIENT_KEY, u).
type Authenticator struct {
	ml             *MessageLayer
	maxUsernameLen int
	metrics        *ServerMetrics
}

// NewAuthenticator builds an Authenticator bounding usernames to
// maxUsernameLen bytes (see DESIGN.md §9.2 for why this is configurable).
func NewAuthenticator(ml *MessageLayer, maxUsernameLen int, metrics *ServerMetrics) *Authenticator {
	return &Authenticator{ml: ml, maxUsernameLen: maxUsernameLen, metrics: metrics}
}

// Authenticate runs the handshake to completion, returning the peer's
// claimed username on success.
func (a *Authenticator) Authenticate() (string, error) {
	username, err := a.ml.ReadExpected(a.maxUsernameLen)
	if err != nil {
		return "", err
	}

	if err := a.ml.Send(strconv.FormatUint(uint64(computeHash(ServerKey, username)), 10)); err != nil {
		return "", err
	}

	confirmation, err := a.ml.ReadExpected(MaxConfirmationReadLen)
	if err != nil {
		return "", err
	}

	// The reader bounds this read at 10 bytes (MaxConfirmationReadLen),
	// but a valid confirmation is never longer than 5 digits; the
	// separate length check below rejects anything past that, per
	// DESIGN.md §9.3.
	if confirmation == "" || len(confirmation) > MaxConfirmationLen || !allDigits(confirmation) {
		return "", a.ml.sendSyntax("malformed confirmation code")
	}

	value, err := strconv.ParseUint(confirmation, 10, 64)
	if err != nil {
		return "", a.ml.sendSyntax("confirmation code not numeric")
	}
	clientHash := uint16(value) // truncating cast: overflow wraps rather than errors

	if clientHash != computeHash(ClientKey, username) {
		if err := a.ml.Send("300 LOGIN FAILED"); err != nil {
			return "", err
		}
		if a.metrics != nil {
			a.metrics.IncAuthFailures()
		}
		return "", &AuthError{Msg: "confirmation hash mismatch"}
	}

	if err := a.ml.Send("200 OK"); err != nil {
		return "", err
	}
	if a.metrics != nil {
		a.metrics.IncAuthSuccesses()
	}
	return username, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
