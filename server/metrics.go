package server

import (
	"sync/atomic"
)

// ServerMetrics records process-wide counters exposed by the admin
// endpoint: plain int64 fields updated with sync/atomic, and a
// Snapshot for HTTP output.
type ServerMetrics struct {
	SessionsStarted  int64
	SessionsEnded    int64
	CommandsSent     int64
	SyntaxErrors     int64
	LogicErrors      int64
	AuthSuccesses    int64
	AuthFailures     int64
	SecretsFound     int64
	RechargingPauses int64
}

func (m *ServerMetrics) IncSessionsStarted()  { atomic.AddInt64(&m.SessionsStarted, 1) }
func (m *ServerMetrics) IncSessionsEnded()    { atomic.AddInt64(&m.SessionsEnded, 1) }
func (m *ServerMetrics) IncCommandsSent()     { atomic.AddInt64(&m.CommandsSent, 1) }
func (m *ServerMetrics) IncSyntaxErrors()     { atomic.AddInt64(&m.SyntaxErrors, 1) }
func (m *ServerMetrics) IncLogicErrors()      { atomic.AddInt64(&m.LogicErrors, 1) }
func (m *ServerMetrics) IncAuthSuccesses()    { atomic.AddInt64(&m.AuthSuccesses, 1) }
func (m *ServerMetrics) IncAuthFailures()     { atomic.AddInt64(&m.AuthFailures, 1) }
func (m *ServerMetrics) IncSecretsFound()     { atomic.AddInt64(&m.SecretsFound, 1) }
func (m *ServerMetrics) IncRechargingPauses() { atomic.AddInt64(&m.RechargingPauses, 1) }

// Snapshot returns a read-only copy for the admin endpoint.
func (m *ServerMetrics) Snapshot() map[string]any {
	started := atomic.LoadInt64(&m.SessionsStarted)
	ended := atomic.LoadInt64(&m.SessionsEnded)
	return map[string]any{
		"sessions_started":  started,
		"sessions_ended":    ended,
		"sessions_active":   started - ended,
		"commands_sent":     atomic.LoadInt64(&m.CommandsSent),
		"syntax_errors":     atomic.LoadInt64(&m.SyntaxErrors),
		"logic_errors":      atomic.LoadInt64(&m.LogicErrors),
		"auth_successes":    atomic.LoadInt64(&m.AuthSuccesses),
		"auth_failures":     atomic.LoadInt64(&m.AuthFailures),
		"secrets_found":     atomic.LoadInt64(&m.SecretsFound),
		"recharging_pauses": atomic.LoadInt64(&m.RechargingPauses),
	}
}
