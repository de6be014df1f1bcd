// Package ldapfetch fetches ldap, ldaps and ldapi URLs through the standard
// net/http client machinery. A directory search comes back as an ordinary
// *http.Response carrying the entries as HTML, LDIF or JSON.
package ldapfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/wiltonsr/ldapfetch/ldaputils"
	"github.com/wiltonsr/ldapfetch/ldapurl"
	"github.com/wiltonsr/ldapfetch/pkg/session"
	"github.com/wiltonsr/ldapfetch/render"
)

const (
	bindPasswordEnv = "LDAPFETCH_BIND_PASSWORD"

	msgNoProxy = "You can not proxy through the ldap protocol"
)

// Schemes handled by Transport.
var Schemes = []string{"ldap", "ldaps", "ldapi"}

var schemePattern = regexp.MustCompile(`^ldap[si]?$`)

// Config the fetcher configuration.
type Config struct {
	Enabled            bool          `json:"enabled,omitempty" yaml:"enabled,omitempty" default:"true"`
	Debug              bool          `json:"debug,omitempty" yaml:"debug,omitempty"`
	Timeout            time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" default:"30s"`
	SizeLimit          int           `json:"sizeLimit,omitempty" yaml:"sizeLimit,omitempty"`
	BindDN             string        `json:"bindDN,omitempty" yaml:"bindDN,omitempty"`
	BindPassword       string        `json:"bindPassword,omitempty" yaml:"bindPassword,omitempty"`
	Realm              string        `json:"realm,omitempty" yaml:"realm,omitempty" default:"ldapfetch"`
	StrictAuth         bool          `json:"strictAuth,omitempty" yaml:"strictAuth,omitempty"`
	InsecureSkipVerify bool          `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	CAFile             string        `json:"caFile,omitempty" yaml:"caFile,omitempty"`
}

// CreateConfig creates the default configuration.
func CreateConfig() *Config {
	config := &Config{}
	if err := defaults.Set(config); err != nil {
		log.WithError(err).Error("unable to apply configuration defaults")
	}
	return config
}

// Transport is an http.RoundTripper for directory URLs. Every request runs
// its own session: connect, optional StartTLS, optional bind, one search,
// close. RoundTrip never returns an error; failures are responses.
type Transport struct {
	Config *Config

	// Dialer opens directory connections. Nil uses ldap.DialURL.
	Dialer ldaputils.Dialer

	// Proxy reports the proxy a request would go through. Any non-nil
	// result is refused since the protocol cannot be proxied.
	Proxy func(*http.Request) (*url.URL, error)

	Logger *log.Logger

	capability capability
}

// NewTransport returns a Transport for config. A nil config gets the
// defaults. An empty BindPassword is looked up in the environment.
func NewTransport(config *Config) *Transport {
	if config == nil {
		config = CreateConfig()
	}
	if config.BindPassword == "" {
		config.BindPassword = getSecret(bindPasswordEnv)
	}
	return &Transport{Config: config}
}

// Register makes rt the handler of every directory scheme on t, so an
// http.Client built on t fetches directory URLs. rt inherits t's proxy
// function unless it already has one.
func Register(t *http.Transport, rt *Transport) {
	if rt.Proxy == nil {
		rt.Proxy = t.Proxy
	}
	for _, scheme := range Schemes {
		t.RegisterProtocol(scheme, rt)
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := t.logger().WithFields(log.Fields{
		"request_id": uuid.NewString(),
		"method":     req.Method,
	})
	if req.URL != nil {
		logger = logger.WithField("scheme", req.URL.Scheme)
	}

	resp := t.fetch(req, logger)

	logger.WithFields(log.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Info("directory fetch finished")
	return resp, nil
}

func (t *Transport) fetch(req *http.Request, logger *log.Entry) *http.Response {
	if t.Proxy != nil {
		proxyURL, err := t.Proxy(req)
		if err != nil || proxyURL != nil {
			logger.Debug("refusing proxied request")
			return errorResponse(req, http.StatusBadRequest, msgNoProxy)
		}
	}

	if req.URL == nil || !schemePattern.MatchString(strings.ToLower(req.URL.Scheme)) {
		scheme := ""
		if req.URL != nil {
			scheme = req.URL.Scheme
		}
		return errorResponse(req, http.StatusInternalServerError, fmt.Sprintf("unsupported URL scheme %q", scheme))
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead && req.Method != "" {
		return errorResponse(req, http.StatusNotImplemented, fmt.Sprintf("%s method not implemented", req.Method))
	}

	tlsConfig, err := t.probe()
	if err != nil {
		logger.WithError(err).Error("directory client unavailable")
		return errorResponse(req, http.StatusInternalServerError, err.Error())
	}

	config := t.config()

	target, err := ldapurl.FromRequestURL(req.URL)
	if err != nil {
		return errorResponse(req, http.StatusBadRequest, err.Error())
	}
	logger = logger.WithFields(log.Fields{
		"host":  target.Host,
		"dn":    target.DN,
		"scope": target.Scope.String(),
	})

	creds, err := resolveCredentials(req, target, config)
	if err != nil {
		logger.WithError(err).Debug("rejecting request credentials")
		return challengeResponse(req, config.Realm)
	}

	extension, _ := target.Extension("x-format")
	format := render.Negotiate(extension, req.Header.Get("Accept"))
	logger = logger.WithField("format", format.String())

	sess, err := session.Open(target, session.Options{
		Dialer:    t.Dialer,
		TLSConfig: tlsConfig,
		Timeout:   t.timeout(req.Context()),
		SizeLimit: config.SizeLimit,
		Logger:    logger,
	})
	if err != nil {
		return directoryError(req, logger, "connect", err)
	}
	defer sess.Close()

	if _, ok := target.Extension("x-tls"); ok && target.Scheme != "ldaps" {
		if err := sess.StartTLS(); err != nil {
			return directoryError(req, logger, "starttls", err)
		}
	}

	if creds.user != "" {
		logger = logger.WithFields(log.Fields{"user": creds.user, "credentials": creds.source})
		if err := sess.Bind(creds.user, creds.password); err != nil {
			return directoryError(req, logger, "bind", err)
		}
	}

	entries, err := sess.Search()
	if err != nil {
		return directoryError(req, logger, "search", err)
	}

	result, err := render.Render(format, entries)
	if err != nil {
		logger.WithError(err).Error("rendering failed")
		return errorResponse(req, http.StatusInternalServerError, err.Error())
	}

	return documentResponse(req, result)
}

// timeout is the configured timeout, shortened to the request deadline when
// that comes first.
func (t *Transport) timeout(ctx context.Context) time.Duration {
	timeout := t.config().Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (timeout <= 0 || remaining < timeout) {
			timeout = remaining
		} else if remaining <= 0 {
			timeout = time.Nanosecond
		}
	}
	return timeout
}

// config returns the transport configuration, or the defaults for a zero
// Transport.
func (t *Transport) config() *Config {
	if t.Config != nil {
		return t.Config
	}
	return CreateConfig()
}

func (t *Transport) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.StandardLogger()
}

func directoryError(req *http.Request, logger *log.Entry, step string, err error) *http.Response {
	logger.WithFields(log.Fields{
		"step":        step,
		"result_code": ldaputils.ResultCode(err),
	}).WithError(err).Warn("directory operation failed")
	return errorResponse(req, http.StatusBadRequest, ldaputils.ErrorText(err))
}
