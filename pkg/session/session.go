// Package session drives one directory connection from connect to close.
package session

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	log "github.com/sirupsen/logrus"

	"github.com/wiltonsr/ldapfetch/ldaputils"
	"github.com/wiltonsr/ldapfetch/ldapurl"
)

var (
	ErrInvalidState = errors.New("session: operation not allowed in current state")
	ErrExpired      = errors.New("session: deadline exceeded")
)

// State is the lifecycle position of a Session.
type State int

const (
	Disconnected State = iota
	Connected
	TLSUpgraded
	Bound
	Searched
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case TLSUpgraded:
		return "tls-upgraded"
	case Bound:
		return "bound"
	case Searched:
		return "searched"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures Open.
type Options struct {
	Dialer    ldaputils.Dialer // nil dials with ldap.DialURL
	TLSConfig *tls.Config      // used for ldaps and StartTLS
	Timeout   time.Duration    // upper bound for the whole session, 0 for none
	SizeLimit int
	Logger    *log.Entry
}

// Session is a single directory connection. It is not safe for concurrent
// use and is never reused once closed.
type Session struct {
	conn      ldaputils.Conn
	target    *ldapurl.URL
	tlsConfig *tls.Config
	state     State
	username  string
	expiry    time.Time
	sizeLimit int
	logger    *log.Entry
}

// Open connects to the server named by target. On error no connection is
// held and there is nothing to close.
func Open(target *ldapurl.URL, opts Options) (*Session, error) {
	s := &Session{
		target:    target,
		tlsConfig: opts.TLSConfig,
		sizeLimit: opts.SizeLimit,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.NewEntry(log.StandardLogger())
	}
	if opts.Timeout > 0 {
		s.expiry = time.Now().Add(opts.Timeout)
	}

	var dialTLS *tls.Config
	if target.Scheme == "ldaps" {
		dialTLS = s.serverTLSConfig()
	}

	start := time.Now()
	conn, err := ldaputils.Connect(opts.Dialer, target.DialAddr(), opts.Timeout, dialTLS)
	if err != nil {
		s.logger.WithError(err).Debugf("connect to %s failed", target.DialAddr())
		return nil, err
	}
	s.logger.WithField("duration", time.Since(start).String()).Debugf("connected to %s", target.DialAddr())

	s.conn = conn
	s.state = Connected
	return s, nil
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	return s.state
}

// Username is the identity of the last successful bind, empty when anonymous.
func (s *Session) Username() string {
	return s.username
}

// IsExpired determines if the session deadline has passed.
func (s *Session) IsExpired() bool {
	return !s.expiry.IsZero() && s.expiry.Before(time.Now())
}

// StartTLS upgrades the plaintext connection.
func (s *Session) StartTLS() error {
	if err := s.step(Connected); err != nil {
		return err
	}

	if err := s.conn.StartTLS(s.serverTLSConfig()); err != nil {
		return err
	}
	s.logger.Debug("transport upgraded with StartTLS")
	s.state = TLSUpgraded
	return nil
}

// Bind performs a simple bind.
func (s *Session) Bind(username, password string) error {
	if err := s.step(Connected, TLSUpgraded); err != nil {
		return err
	}

	if err := s.conn.Bind(username, password); err != nil {
		return err
	}
	s.logger.WithField("user", username).Debug("bind succeeded")
	s.username = username
	s.state = Bound
	return nil
}

// Search runs the search described by the URL and returns its entries in
// the order the server sent them.
func (s *Session) Search() ([]*ldap.Entry, error) {
	if err := s.step(Connected, TLSUpgraded, Bound); err != nil {
		return nil, err
	}

	req := ldaputils.NewSearchRequest(s.target.DN, s.target.Scope, s.target.Filter, s.target.Attributes, s.sizeLimit, s.remaining())

	start := time.Now()
	res, err := s.conn.Search(req)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{
		"entries":  len(res.Entries),
		"duration": time.Since(start).String(),
	}).Debug("search completed")

	s.state = Searched
	return res.Entries, nil
}

// Close unbinds and releases the connection. It is safe to call more than
// once and on a session that never connected.
func (s *Session) Close() {
	if s == nil || s.conn == nil || s.state == Closed {
		return
	}
	s.state = Closed

	// Unbind already closes a healthy connection; Close covers broken ones.
	if err := s.conn.Unbind(); err != nil {
		s.logger.WithError(err).Debug("unbind failed")
	}
	if err := s.conn.Close(); err != nil {
		s.logger.WithError(err).Debug("close failed")
	}
}

// step checks that the session is in one of the allowed states and that the
// deadline still leaves time for another operation.
func (s *Session) step(allowed ...State) error {
	ok := false
	for _, st := range allowed {
		if s.state == st {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}

	if s.IsExpired() {
		return ErrExpired
	}
	if remaining := s.remaining(); remaining > 0 {
		s.conn.SetTimeout(remaining)
	}
	return nil
}

func (s *Session) remaining() time.Duration {
	if s.expiry.IsZero() {
		return 0
	}
	if d := time.Until(s.expiry); d > 0 {
		return d
	}
	return 0
}

// serverTLSConfig fills in the server name, which StartTLS needs for
// certificate verification.
func (s *Session) serverTLSConfig() *tls.Config {
	var cfg *tls.Config
	if s.tlsConfig != nil {
		cfg = s.tlsConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.ServerName == "" && s.target.Scheme != "ldapi" {
		host, _, err := net.SplitHostPort(s.target.Host)
		if err != nil {
			host = s.target.Host
		}
		cfg.ServerName = strings.Trim(host, "[]")
	}
	return cfg
}
