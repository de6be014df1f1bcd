// Package ldapmock provides testify mocks for the ldaputils connection
// boundary.
package ldapmock

import (
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"

	"github.com/wiltonsr/ldapfetch/ldaputils"
)

// Conn mocks ldaputils.Conn.
type Conn struct {
	mock.Mock
}

func (m *Conn) StartTLS(config *tls.Config) error {
	args := m.Called(config)
	return args.Error(0)
}

func (m *Conn) Bind(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *Conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	if result, ok := args.Get(0).(*ldap.SearchResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Conn) SetTimeout(timeout time.Duration) {
	m.Called(timeout)
}

func (m *Conn) Unbind() error {
	args := m.Called()
	return args.Error(0)
}

func (m *Conn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Dialer mocks ldaputils.Dialer.
type Dialer struct {
	mock.Mock
}

func (m *Dialer) DialURL(addr string, opts ...ldap.DialOpt) (ldaputils.Conn, error) {
	args := m.Called(addr)
	if conn, ok := args.Get(0).(ldaputils.Conn); ok {
		return conn, args.Error(1)
	}
	return nil, args.Error(1)
}

// NewConn returns a Conn that accepts timeouts and teardown, the calls every
// session makes regardless of outcome.
func NewConn() *Conn {
	c := &Conn{}
	c.On("SetTimeout", mock.Anything).Maybe()
	c.On("Unbind").Return(nil).Maybe()
	c.On("Close").Return(nil).Maybe()
	return c
}
