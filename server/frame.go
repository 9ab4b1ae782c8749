package server

import (
	"net"
	"time"
)

// Terminator bytes: a real end-of-message is the exact adjacent pair
// \a\b (0x07 0x08). Either byte may also appear alone inside a payload;
// bounded one-byte lookahead is what tells the two apart.
const (
	termFirst  = 0x07 // '\a'
	termSecond = 0x08 // '\b'
)

type frameState int

const (
	frameOpen frameState = iota
	frameClose
)

// FrameConn is the Frame Reader/Writer: byte-level I/O over a net.Conn
// with a configurable per-read timeout, \a\b-terminated framing, and a
// hard upper bound on payload length. It never buffers past what it
// reads for the current message, so no partial message survives across
// calls.
type FrameConn struct {
	conn    net.Conn
	timeout time.Duration
	metrics *ServerMetrics
}

// NewFrameConn wraps conn with the given normal read timeout.
func NewFrameConn(conn net.Conn, timeout time.Duration, metrics *ServerMetrics) *FrameConn {
	return &FrameConn{conn: conn, timeout: timeout, metrics: metrics}
}

// SetTimeout changes the timeout applied to subsequent reads. Callers
// (the message layer) switch this to TimeoutRecharging around the
// RECHARGING/FULL POWER exchange and restore it afterward.
func (f *FrameConn) SetTimeout(d time.Duration) {
	f.timeout = d
}

// readByte performs a single-byte read with a fresh deadline, so the
// timeout applies per read call rather than to the whole message,
// matching SO_RCVTIMEO socket semantics.
func (f *FrameConn) readByte() (byte, error) {
	if err := f.conn.SetReadDeadline(time.Now().Add(f.timeout)); err != nil {
		return 0, &IOError{Err: err}
	}
	var buf [1]byte
	if _, err := f.conn.Read(buf[:]); err != nil {
		return 0, &IOError{Err: err}
	}
	return buf[0], nil
}

// ReadFrame reads one logical message, stopping at the first real \a\b
// terminator. If the message cannot possibly terminate within
// maxPayload+2 bytes it fails with a syntax error, reporting "301
// SYNTAX ERROR" to the peer before returning.
func (f *FrameConn) ReadFrame(maxPayload int) (string, error) {
	var message []byte
	state := frameOpen
	var cumulative int

	for {
		b, err := f.readByte()
		if err != nil {
			return "", err
		}
		cumulative++

		switch b {
		case termFirst:
			if state == frameOpen {
				state = frameClose
			} else {
				// Second \a while already in CLOSE: append the buffered
				// \a as a literal payload byte and stay in CLOSE. See
				// DESIGN.md §9.1.
				message = append(message, termFirst)
			}
		case termSecond:
			if state == frameOpen {
				message = append(message, termSecond)
			} else {
				return string(message), nil
			}
		default:
			if state == frameClose {
				state = frameOpen
				message = append(message, termFirst)
			}
			message = append(message, b)
		}

		if (cumulative == maxPayload+1 && state == frameOpen) || (cumulative == maxPayload+2) {
			return "", f.failSize()
		}
	}
}

func (f *FrameConn) failSize() error {
	_ = f.WriteFrame("301 SYNTAX ERROR")
	if f.metrics != nil {
		f.metrics.IncSyntaxErrors()
	}
	return &SyntaxError{Msg: "message exceeds size bound"}
}

// WriteFrame appends the \a\b terminator to payload and writes the
// result in a single call. A short write or I/O error is fatal to the
// session.
func (f *FrameConn) WriteFrame(payload string) error {
	buf := make([]byte, 0, len(payload)+2)
	buf = append(buf, payload...)
	buf = append(buf, termFirst, termSecond)
	n, err := f.conn.Write(buf)
	if err != nil {
		return &IOError{Err: err}
	}
	if n != len(buf) {
		return &IOError{Err: net.ErrClosed}
	}
	return nil
}
