package server

import (
	"bufio"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
)

// readFramed reads one \a\b-terminated message off r, stripping the
// terminator, for use by the fake-robot side of session tests.
func readFramed(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("readFramed: %v", err)
		}
		if b == termSecond && len(out) > 0 && out[len(out)-1] == termFirst {
			return string(out[:len(out)-1])
		}
		out = append(out, b)
	}
}

func TestSessionEndToEndHappyPath(t *testing.T) {
	client, srv := pipeConns(t)
	cfg := NewConfig()
	cfg.OverrideTimeout(2 * time.Second)
	cfg.OverrideTimeoutRecharging(2 * time.Second)
	metrics := &ServerMetrics{}
	mgr := &SessionManager{sessions: make(map[string]*Session)}
	log := zap.NewNop().Sugar()

	done := make(chan struct{})
	go func() {
		Run(srv, cfg, metrics, mgr, nil, log)
		close(done)
	}()

	r := bufio.NewReader(client)
	username := "Mnau!"
	client.Write([]byte(username + "\a\b"))

	challenge := readFramed(t, r)
	serverHash, err := strconv.ParseUint(challenge, 10, 64)
	if err != nil {
		t.Fatalf("challenge not numeric: %q", challenge)
	}
	if uint16(serverHash) != computeHash(ServerKey, username) {
		t.Fatalf("server challenge mismatch")
	}

	reply := strconv.FormatUint(uint64(computeHash(ClientKey, username)), 10)
	client.Write([]byte(reply + "\a\b"))

	if got := readFramed(t, r); got != "200 OK" {
		t.Fatalf("expected 200 OK, got %q", got)
	}

	// First MOVE lands directly on the target cell: no orientation
	// inference or further navigation needed.
	if got := readFramed(t, r); got != "102 MOVE" {
		t.Fatalf("expected 102 MOVE, got %q", got)
	}
	client.Write([]byte("OK -2 2\a\b"))

	if got := readFramed(t, r); got != "105 GET MESSAGE" {
		t.Fatalf("expected 105 GET MESSAGE, got %q", got)
	}
	client.Write([]byte("the secret is here\a\b"))

	if got := readFramed(t, r); got != "106 LOGOUT" {
		t.Fatalf("expected 106 LOGOUT, got %q", got)
	}

	<-done
	if metrics.SessionsStarted != 1 || metrics.SessionsEnded != 1 {
		t.Fatalf("session accounting off: %+v", metrics.Snapshot())
	}
}

func TestSessionRejectsBadAuthAndCountsFailure(t *testing.T) {
	client, srv := pipeConns(t)
	cfg := NewConfig()
	cfg.OverrideTimeout(2 * time.Second)
	metrics := &ServerMetrics{}
	mgr := &SessionManager{sessions: make(map[string]*Session)}
	log := zap.NewNop().Sugar()

	done := make(chan struct{})
	go func() {
		Run(srv, cfg, metrics, mgr, nil, log)
		close(done)
	}()

	r := bufio.NewReader(client)
	client.Write([]byte("Mnau!\a\b"))
	readFramed(t, r) // challenge
	client.Write([]byte("1\a\b"))

	if got := readFramed(t, r); got != "300 LOGIN FAILED" {
		t.Fatalf("expected 300 LOGIN FAILED, got %q", got)
	}
	<-done
	if metrics.AuthFailures != 1 {
		t.Fatalf("expected 1 auth failure, got %d", metrics.AuthFailures)
	}
}
