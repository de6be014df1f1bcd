// Package ldapurl parses LDAP URLs (RFC 4516) into the parts needed to run
// a single directory search.
//
// The general form is
//
//	scheme://[user[:password]@]hostport/dn?attributes?scope?filter?extensions
//
// where every component after the host is optional and percent-encoded.
package ldapurl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrMissingScheme = errors.New("ldapurl: missing scheme")
	ErrInvalidScope  = errors.New("ldapurl: invalid scope")
)

// Scope is the breadth of a directory search.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOne
	ScopeSub
)

func (s Scope) String() string {
	switch s {
	case ScopeOne:
		return "one"
	case ScopeSub:
		return "sub"
	default:
		return "base"
	}
}

// ParseScope maps the scope component of a URL to a Scope. An empty string is
// the base scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "", "base":
		return ScopeBase, nil
	case "one":
		return ScopeOne, nil
	case "sub":
		return ScopeSub, nil
	}
	return ScopeBase, fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// Extension is one element of the extensions component.
type Extension struct {
	Name     string // lower-cased
	Value    string
	Critical bool // written with a leading '!'
}

// URL is a decomposed LDAP URL. All fields hold decoded text.
type URL struct {
	Scheme     string
	UserInfo   string // "user:password", empty when absent
	Host       string // host[:port]; for ldapi the socket path
	DN         string
	Attributes []string
	Scope      Scope
	Filter     string
	Extensions []Extension
}

// Parse decomposes raw into a URL.
func Parse(raw string) (*URL, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return nil, ErrMissingScheme
	}
	u := &URL{Scheme: strings.ToLower(scheme)}

	// a fragment has no meaning for a directory lookup
	rest, _, _ = strings.Cut(rest, "#")

	authority, remainder := rest, ""
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		authority, remainder = rest[:i], rest[i:]
	}

	if i := strings.LastIndex(authority, "@"); i >= 0 {
		info, err := unescape(authority[:i])
		if err != nil {
			return nil, fmt.Errorf("ldapurl: user info: %w", err)
		}
		u.UserInfo = info
		authority = authority[i+1:]
	}

	host, err := unescape(authority)
	if err != nil {
		return nil, fmt.Errorf("ldapurl: host: %w", err)
	}
	u.Host = host

	dn, query, _ := strings.Cut(strings.TrimPrefix(remainder, "/"), "?")
	if u.DN, err = unescape(dn); err != nil {
		return nil, fmt.Errorf("ldapurl: dn: %w", err)
	}

	parts := strings.SplitN(query, "?", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	for _, attr := range strings.Split(parts[0], ",") {
		attr, err := unescape(strings.TrimSpace(attr))
		if err != nil {
			return nil, fmt.Errorf("ldapurl: attributes: %w", err)
		}
		if attr != "" {
			u.Attributes = append(u.Attributes, attr)
		}
	}

	scope, err := unescape(parts[1])
	if err != nil {
		return nil, fmt.Errorf("ldapurl: scope: %w", err)
	}
	if u.Scope, err = ParseScope(scope); err != nil {
		return nil, err
	}

	if u.Filter, err = unescape(parts[2]); err != nil {
		return nil, fmt.Errorf("ldapurl: filter: %w", err)
	}

	for _, ext := range strings.Split(parts[3], ",") {
		if ext == "" {
			continue
		}
		e := Extension{}
		if strings.HasPrefix(ext, "!") {
			e.Critical = true
			ext = ext[1:]
		}
		name, value, _ := strings.Cut(ext, "=")
		if e.Name, err = unescape(name); err != nil {
			return nil, fmt.Errorf("ldapurl: extension: %w", err)
		}
		if e.Value, err = unescape(value); err != nil {
			return nil, fmt.Errorf("ldapurl: extension %s: %w", e.Name, err)
		}
		e.Name = strings.ToLower(e.Name)
		u.Extensions = append(u.Extensions, e)
	}

	return u, nil
}

// FromRequestURL parses the target URL of an outgoing request.
func FromRequestURL(target *url.URL) (*URL, error) {
	if target == nil {
		return nil, ErrMissingScheme
	}
	return Parse(target.String())
}

// Extension reports the value of the named extension and whether it was
// present at all.
func (u *URL) Extension(name string) (string, bool) {
	for _, e := range u.Extensions {
		if strings.EqualFold(e.Name, name) {
			return e.Value, true
		}
	}
	return "", false
}

// User splits the user info on the first colon. ok is false when the URL
// carries no user info.
func (u *URL) User() (user, password string, ok bool) {
	if u.UserInfo == "" {
		return "", "", false
	}
	user, password, _ = strings.Cut(u.UserInfo, ":")
	return user, password, true
}

// DialAddr is the address handed to the directory client to open a
// connection. It never carries user info or search parameters.
func (u *URL) DialAddr() string {
	if u.Scheme == "ldapi" {
		if !strings.HasPrefix(u.Host, "/") {
			// the client library falls back to its default socket
			return "ldapi://"
		}
		return (&url.URL{Scheme: "ldapi", Path: u.Host}).String()
	}
	return u.Scheme + "://" + u.Host
}

// String reassembles the URL. Trailing empty components are omitted and the
// password is kept, so do not log the result.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")

	if user, password, ok := u.User(); ok {
		b.WriteString(escape(user, subDelims))
		if strings.Contains(u.UserInfo, ":") {
			b.WriteByte(':')
			b.WriteString(escape(password, subDelims))
		}
		b.WriteByte('@')
	}

	if u.Scheme == "ldapi" {
		b.WriteString(escape(u.Host, ""))
	} else {
		b.WriteString(u.Host)
	}

	attrs := make([]string, 0, len(u.Attributes))
	for _, a := range u.Attributes {
		attrs = append(attrs, escape(a, ""))
	}

	scope := ""
	if u.Scope != ScopeBase {
		scope = u.Scope.String()
	}

	exts := make([]string, 0, len(u.Extensions))
	for _, e := range u.Extensions {
		ext := escape(e.Name, "")
		if e.Value != "" {
			ext += "=" + escape(e.Value, "!$&'()*+;=:@/")
		}
		if e.Critical {
			ext = "!" + ext
		}
		exts = append(exts, ext)
	}

	query := []string{
		strings.Join(attrs, ","),
		scope,
		escape(u.Filter, subDelims+":@/"),
		strings.Join(exts, ","),
	}
	for len(query) > 0 && query[len(query)-1] == "" {
		query = query[:len(query)-1]
	}

	b.WriteByte('/')
	b.WriteString(escape(u.DN, subDelims+":@"))
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(query, "?"))
	}
	return b.String()
}

const subDelims = "!$&'()*+,;="

func unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

// escape percent-encodes every byte that is not unreserved and not listed
// in allowed.
func escape(s, allowed string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (c < 0x80 && strings.IndexByte(allowed, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}
