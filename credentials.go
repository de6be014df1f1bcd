package ldapfetch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	auth "github.com/abbot/go-http-auth"

	"github.com/wiltonsr/ldapfetch/ldapurl"
)

var (
	errNotBasic              = errors.New("authorization scheme is not Basic")
	errMalformedBasicPayload = errors.New("malformed Basic authorization payload")
)

// Where a bind identity came from.
const (
	sourceURL    = "url"
	sourceHeader = "header"
	sourceConfig = "config"
)

type credentials struct {
	user     string
	password string
	source   string
}

// resolveCredentials picks the bind identity: URL user info first, then a
// Basic Authorization header, then the configured bind DN. The zero value
// means an anonymous session.
//
// A Basic header that does not decode counts as absent, unless StrictAuth
// is set, in which case the error is returned.
func resolveCredentials(req *http.Request, target *ldapurl.URL, config *Config) (credentials, error) {
	if user, password, ok := target.User(); ok {
		return credentials{user: user, password: password, source: sourceURL}, nil
	}

	if header := req.Header.Get(auth.NormalHeaders.Authorization); header != "" {
		user, password, err := parseBasicAuth(header)
		switch {
		case err == nil:
			return credentials{user: user, password: password, source: sourceHeader}, nil
		case errors.Is(err, errMalformedBasicPayload) && config.StrictAuth:
			return credentials{}, err
		}
	}

	if config.BindDN != "" {
		return credentials{user: config.BindDN, password: config.BindPassword, source: sourceConfig}, nil
	}
	return credentials{}, nil
}

// parseBasicAuth decodes "Basic <base64(user:password)>". The keyword is
// matched case-insensitively and the password may be absent.
func parseBasicAuth(header string) (user, password string, err error) {
	scheme, payload, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "basic") {
		return "", "", errNotBasic
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errMalformedBasicPayload, err)
	}

	user, password, _ = strings.Cut(string(decoded), ":")
	return user, password, nil
}
