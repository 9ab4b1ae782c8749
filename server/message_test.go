package server

import (
	"net"
	"testing"
	"time"
)

func newMessageLayer(t *testing.T, timeout, recharging time.Duration) (*MessageLayer, net.Conn) {
	t.Helper()
	client, srv := pipeConns(t)
	fc := NewFrameConn(srv, timeout, nil)
	return NewMessageLayer(fc, timeout, recharging, nil), client
}

func TestReadExpectedPassesThroughOrdinaryMessage(t *testing.T) {
	ml, client := newMessageLayer(t, time.Second, time.Second)
	go client.Write([]byte("102 MOVE\a\b"))

	got, err := ml.ReadExpected(64)
	if err != nil {
		t.Fatalf("ReadExpected: %v", err)
	}
	if got != "102 MOVE" {
		t.Fatalf("got %q", got)
	}
}

func TestReadExpectedAbsorbsRechargingPause(t *testing.T) {
	ml, client := newMessageLayer(t, time.Second, time.Second)

	go func() {
		client.Write([]byte("RECHARGING\a\b"))
		client.Write([]byte("FULL POWER\a\b"))
		client.Write([]byte("102 MOVE\a\b"))
	}()

	got, err := ml.ReadExpected(64)
	if err != nil {
		t.Fatalf("ReadExpected: %v", err)
	}
	if got != "102 MOVE" {
		t.Fatalf("got %q, want %q", got, "102 MOVE")
	}
}

func TestReadExpectedTreatsFullPowerTimeoutAsLogicError(t *testing.T) {
	metrics := &ServerMetrics{}
	client, srv := pipeConns(t)
	fc := NewFrameConn(srv, time.Second, metrics)
	ml := NewMessageLayer(fc, time.Second, 50*time.Millisecond, metrics)

	go client.Write([]byte("RECHARGING\a\b"))
	go func() {
		buf := make([]byte, 64)
		client.Read(buf) // drain server's logic-error response
	}()
	// No FULL POWER follows; the recharging-window read must time out.

	_, err := ml.ReadExpected(64)
	if _, ok := err.(*LogicError); !ok {
		t.Fatalf("expected *LogicError, got %T (%v)", err, err)
	}
	if metrics.LogicErrors != 1 {
		t.Fatalf("expected 1 logic error counted, got %d", metrics.LogicErrors)
	}
}

func TestReadExpectedRejectsBrokenRechargingHandshake(t *testing.T) {
	metrics := &ServerMetrics{}
	client, srv := pipeConns(t)
	fc := NewFrameConn(srv, time.Second, metrics)
	ml := NewMessageLayer(fc, time.Second, time.Second, metrics)

	go func() {
		client.Write([]byte("RECHARGING\a\b"))
		client.Write([]byte("OK 1 1\a\b"))
	}()
	go func() {
		buf := make([]byte, 64)
		client.Read(buf) // drain server's error response
	}()

	_, err := ml.ReadExpected(64)
	if _, ok := err.(*LogicError); !ok {
		t.Fatalf("expected *LogicError, got %T (%v)", err, err)
	}
	if metrics.LogicErrors != 1 {
		t.Fatalf("expected 1 logic error counted, got %d", metrics.LogicErrors)
	}
}
