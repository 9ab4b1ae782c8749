package server

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Per-message-kind length bounds (payload bytes, excluding the \a\b
// terminator), per the protocol's documented length table.
const (
	MaxUsernameLen         = 18 // documented protocol bound; see DESIGN.md §9.2
	MaxKeyIDLen            = 3  // documented in the length table; unused by the handshake itself
	MaxConfirmationReadLen = 10 // FR-level read bound; see DESIGN.md §9.3
	MaxConfirmationLen     = 5  // post-read rejection bound; see DESIGN.md §9.3
	MaxOKConfirmationLen   = 10
	MaxRechargingLen       = 10
	MaxSecretLen           = 98
)

const (
	msgRecharging = "RECHARGING"
	msgFullPower  = "FULL POWER"
)

// MessageLayer wraps a FrameConn with the recharging pause sub-protocol.
// It never returns control to a caller mid-pause: ReadExpected only
// returns once the actual expected message has been read, whether or
// not a recharging pause happened first.
type MessageLayer struct {
	fc                *FrameConn
	timeout           time.Duration
	timeoutRecharging time.Duration
	metrics           *ServerMetrics
}

// NewMessageLayer builds a MessageLayer over fc using the two configured
// timeouts.
func NewMessageLayer(fc *FrameConn, timeout, timeoutRecharging time.Duration, metrics *ServerMetrics) *MessageLayer {
	return &MessageLayer{fc: fc, timeout: timeout, timeoutRecharging: timeoutRecharging, metrics: metrics}
}

// ReadExpected reads the next message the caller actually wants,
// transparently absorbing any RECHARGING/FULL POWER pause in front of
// it. maxLen bounds every message read in the normal state, including a
// RECHARGING that arrives in place of the expected message; the reply
// that must be FULL POWER is bounded by MaxRechargingLen.
func (m *MessageLayer) ReadExpected(maxLen int) (string, error) {
	for {
		m.fc.SetTimeout(m.timeout)
		msg, err := m.fc.ReadFrame(maxLen)
		if err != nil {
			return "", err
		}
		if msg != msgRecharging {
			return msg, nil
		}
		if m.metrics != nil {
			m.metrics.IncRechargingPauses()
		}
		m.fc.SetTimeout(m.timeoutRecharging)
		reply, err := m.fc.ReadFrame(MaxRechargingLen)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", m.sendLogic("timed out waiting for FULL POWER")
			}
			return "", err
		}
		if reply != msgFullPower {
			return "", m.sendLogic(fmt.Sprintf("expected FULL POWER, got %q", reply))
		}
		m.fc.SetTimeout(m.timeout)
		// Loop back and read the message the caller originally wanted.
	}
}

// Send writes payload as a framed message.
func (m *MessageLayer) Send(payload string) error {
	return m.fc.WriteFrame(payload)
}

func (m *MessageLayer) sendLogic(msg string) *LogicError {
	_ = m.fc.WriteFrame("302 LOGIC ERROR")
	if m.metrics != nil {
		m.metrics.IncLogicErrors()
	}
	return &LogicError{Msg: msg}
}

func (m *MessageLayer) sendSyntax(msg string) *SyntaxError {
	_ = m.fc.WriteFrame("301 SYNTAX ERROR")
	if m.metrics != nil {
		m.metrics.IncSyntaxErrors()
	}
	return &SyntaxError{Msg: msg}
}
