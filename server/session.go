package server

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session drives one accepted connection through authentication,
// navigation, and pickup, logging every fault and publishing live state
// to the dashboard hub.
type Session struct {
	id      string
	conn    net.Conn
	cfg     *Config
	metrics *ServerMetrics
	mgr     *SessionManager
	hub     *DashboardHub
	log     *zap.SugaredLogger

	ml  *MessageLayer
	nav *Navigator

	username  string
	position  Position
	direction Direction
	phase     string
}

// sessionPeer adapts a *MessageLayer to the peer interface consumed by
// Navigator.
type sessionPeer struct {
	ml *MessageLayer
}

func (p sessionPeer) send(text string) error         { return p.ml.Send(text) }
func (p sessionPeer) recv(maxLen int) (string, error) { return p.ml.ReadExpected(maxLen) }

// Run drives conn through the full session lifecycle to completion. It
// never returns an error to the caller: every fault is logged and the
// connection is closed before Run returns. It is meant to be launched
// as `go server.Run(...)` per accepted connection.
func Run(conn net.Conn, cfg *Config, metrics *ServerMetrics, mgr *SessionManager, hub *DashboardHub, log *zap.SugaredLogger) {
	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		cfg:     cfg,
		metrics: metrics,
		mgr:     mgr,
		hub:     hub,
		phase:   "connected",
	}
	s.log = log.With("session", s.id)
	defer conn.Close()

	if metrics != nil {
		metrics.IncSessionsStarted()
		defer metrics.IncSessionsEnded()
	}
	if mgr != nil {
		mgr.Add(s)
		defer mgr.Remove(s.id)
	}

	s.log.Infow("session opened", "remote", conn.RemoteAddr().String())

	if err := s.run(); err != nil {
		s.logError(err)
	} else {
		s.log.Infow("session completed", "phase", s.phase)
	}
}

func (s *Session) run() error {
	fc := NewFrameConn(s.conn, s.cfg.Timeout(), s.metrics)
	s.ml = NewMessageLayer(fc, s.cfg.Timeout(), s.cfg.TimeoutRecharging(), s.metrics)

	s.phase = "authenticating"
	auth := NewAuthenticator(s.ml, MaxUsernameLen, s.metrics)
	username, err := auth.Authenticate()
	if err != nil {
		return err
	}
	s.username = username
	s.log = s.log.With("username", username)
	s.log.Infow("authenticated")
	s.publish()

	s.phase = "navigating"
	s.nav = NewNavigator(sessionPeer{ml: s.ml}, s.cfg.Target(), s.metrics)
	s.nav.onState = func(pos Position, dir Direction) {
		s.position = pos
		s.direction = dir
		s.publish()
	}
	s.nav.onSecret = func(secret string) {
		fmt.Printf("SECRET:%s\n", secret)
	}

	secret, err := s.nav.Run()
	if err != nil {
		return err
	}

	s.phase = "done"
	s.log.Infow("secret retrieved", "secret", secret, "position", s.position)
	s.publish()
	return nil
}

// State returns a snapshot suitable for the admin/dashboard endpoints.
func (s *Session) State() SessionState {
	return SessionState{
		ID:        s.id,
		Username:  s.username,
		Phase:     s.phase,
		Position:  s.position,
		Direction: s.direction.String(),
		Remote:    s.conn.RemoteAddr().String(),
	}
}

func (s *Session) publish() {
	if s.hub != nil {
		s.hub.Update(s.State())
	}
}

// logError records a session-terminating fault at the level appropriate
// to its kind. It never increments metrics: whichever layer detected the
// fault and sent the wire response already did that, at the point of
// detection.
func (s *Session) logError(err error) {
	switch e := err.(type) {
	case *SyntaxError:
		s.log.Warnw("syntax fault", "phase", s.phase, "detail", e.Msg)
	case *LogicError:
		s.log.Warnw("logic fault", "phase", s.phase, "detail", e.Msg)
	case *AuthError:
		s.log.Warnw("authentication failed", "detail", e.Msg)
	case *IOError:
		s.log.Debugw("connection lost", "phase", s.phase, "err", e.Err)
	default:
		s.log.Errorw("unexpected session error", "phase", s.phase, "err", err)
	}
}
