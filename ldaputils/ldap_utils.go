// Package ldaputils holds the thin boundary between this module and the
// go-ldap client: dialing, error text extraction and search construction.
package ldaputils

import (
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/wiltonsr/ldapfetch/ldapurl"
)

// DefaultFilter is sent when the URL carries no filter.
const DefaultFilter = "(objectClass=*)"

// Conn is the subset of *ldap.Conn a directory session drives.
type Conn interface {
	StartTLS(config *tls.Config) error
	Bind(username, password string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	SetTimeout(timeout time.Duration)
	Unbind() error
	Close() error
}

// Dialer opens a connection to a single LDAP address.
type Dialer interface {
	DialURL(addr string, opts ...ldap.DialOpt) (Conn, error)
}

// StandardDialer dials with ldap.DialURL.
type StandardDialer struct{}

// DialURL implements Dialer.
func (StandardDialer) DialURL(addr string, opts ...ldap.DialOpt) (Conn, error) {
	conn, err := ldap.DialURL(addr, opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect dials addr through dialer, bounding the dial and every later
// operation by timeout. tlsConfig is used for ldaps addresses.
func Connect(dialer Dialer, addr string, timeout time.Duration, tlsConfig *tls.Config) (Conn, error) {
	if dialer == nil {
		dialer = StandardDialer{}
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: timeout})}
	if tlsConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := dialer.DialURL(addr, opts...)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		conn.SetTimeout(timeout)
	}
	return conn, nil
}

// ErrorText returns the diagnostic text of err as the directory reported it.
// For result errors this is the server's message, or the result code name
// when the server sent none.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		if ldapErr.Err != nil && ldapErr.Err.Error() != "" {
			return ldapErr.Err.Error()
		}
		if name, ok := ldap.LDAPResultCodeMap[ldapErr.ResultCode]; ok {
			return name
		}
	}
	return err.Error()
}

// ResultCode returns the LDAP result code carried by err, or 0.
func ResultCode(err error) uint16 {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode
	}
	return 0
}

// Scope maps a URL scope onto the protocol value.
func Scope(s ldapurl.Scope) int {
	switch s {
	case ldapurl.ScopeOne:
		return ldap.ScopeSingleLevel
	case ldapurl.ScopeSub:
		return ldap.ScopeWholeSubtree
	default:
		return ldap.ScopeBaseObject
	}
}

// NormalizeFilter wraps a bare filter item such as "mail=*" in parentheses
// and substitutes DefaultFilter for an empty one.
func NormalizeFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return DefaultFilter
	}
	if !strings.HasPrefix(filter, "(") {
		return "(" + filter + ")"
	}
	return filter
}

// NewSearchRequest builds the request for one URL search. An empty attribute
// list is sent as nil so the server returns every user attribute.
func NewSearchRequest(base string, scope ldapurl.Scope, filter string, attributes []string, sizeLimit int, timeout time.Duration) *ldap.SearchRequest {
	if len(attributes) == 0 {
		attributes = nil
	}

	return ldap.NewSearchRequest(
		base,
		Scope(scope),
		ldap.NeverDerefAliases,
		sizeLimit,
		int(timeout/time.Second),
		false,
		NormalizeFilter(filter),
		attributes,
		nil,
	)
}
