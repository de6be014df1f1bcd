// Package render turns directory search results into one of a fixed set of
// response bodies and picks that format from a URL extension and the Accept
// header.
package render

import (
	"fmt"
	"mime"
	"strings"

	auth "github.com/abbot/go-http-auth"
	"github.com/go-ldap/ldap/v3"
)

// Format is an output representation. The set is closed.
type Format int

const (
	HTML Format = iota
	LDIF
	JSON
)

func (f Format) String() string {
	switch f {
	case LDIF:
		return "ldif"
	case JSON:
		return "json"
	default:
		return "html"
	}
}

// ContentType is the media type of bodies rendered in f.
func (f Format) ContentType() string {
	switch f {
	case LDIF:
		return "text/ldif; charset=utf-8"
	case JSON:
		return "application/json; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// ParseFormat maps an x-format value to a Format. Only "ldif" and "json" are
// recognised; anything else is HTML.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ldif":
		return LDIF
	case "json":
		return JSON
	}
	return HTML
}

var (
	ldifTypes = map[string]bool{"text/ldif": true, "text/x-ldif": true, "application/ldif": true}
	jsonTypes = map[string]bool{"application/json": true, "text/json": true}
)

// Negotiate picks the output format. The Accept header overrides the
// extension, which overrides the HTML default. JSON wins over LDIF when the
// header lists both.
func Negotiate(extension, accept string) Format {
	format := ParseFormat(extension)

	var sawLDIF, sawJSON bool
	for _, item := range auth.ParseList(accept) {
		mediaType, params, err := mime.ParseMediaType(item)
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok && isZeroQ(q) {
			continue
		}
		sawLDIF = sawLDIF || ldifTypes[mediaType]
		sawJSON = sawJSON || jsonTypes[mediaType]
	}

	if sawLDIF {
		format = LDIF
	}
	if sawJSON {
		format = JSON
	}
	return format
}

func isZeroQ(q string) bool {
	q = strings.TrimRight(strings.TrimSpace(q), "0")
	return q == "0." || q == "0" || q == ""
}

// Result is a fully materialised body and its media type.
type Result struct {
	Body        []byte
	ContentType string
}

// Render serialises entries in format f.
func Render(f Format, entries []*ldap.Entry) (*Result, error) {
	var (
		body []byte
		err  error
	)

	switch f {
	case HTML:
		body = renderHTML(entries)
	case LDIF:
		body, err = renderLDIF(entries)
	case JSON:
		body, err = renderJSON(entries)
	default:
		return nil, fmt.Errorf("render: unknown format %d", int(f))
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}

	return &Result{Body: body, ContentType: f.ContentType()}, nil
}
