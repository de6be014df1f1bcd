package ldapfetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	auth "github.com/abbot/go-http-auth"
	log "github.com/sirupsen/logrus"
)

// Gateway is an HTTP middleware serving directory URLs embedded in the
// request path, as in GET /ldap://host/dc=example,dc=com?cn?sub.
type Gateway struct {
	next      http.Handler
	name      string
	config    *Config
	transport *Transport
}

// New created a new Gateway middleware.
func New(ctx context.Context, next http.Handler, config *Config, name string) (http.Handler, error) {
	log.Infof("Starting %s Middleware...", name)

	if config == nil {
		config = CreateConfig()
	}

	logConfig(config)

	return &Gateway{
		name:      name,
		next:      next,
		config:    config,
		transport: NewTransport(config),
	}, nil
}

func (g *Gateway) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if !g.config.Enabled {
		log.Debugf("%s Disabled! Passing request...", g.name)
		g.next.ServeHTTP(rw, req)
		return
	}

	target, ok := gatewayTarget(req)
	if !ok {
		g.next.ServeHTTP(rw, req)
		return
	}

	start := time.Now()
	out := &http.Request{
		Method:     req.Method,
		URL:        target,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Host:       target.Host,
	}
	out = out.WithContext(req.Context())
	for _, name := range []string{"Accept", auth.NormalHeaders.Authorization} {
		if value := req.Header.Get(name); value != "" {
			out.Header.Set(name, value)
		}
	}

	resp, _ := g.transport.RoundTrip(out)
	defer resp.Body.Close()

	for name, values := range resp.Header {
		rw.Header()[name] = values
	}
	rw.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(rw, resp.Body); err != nil {
		log.WithError(err).Debug("writing response body failed")
	}

	log.WithFields(log.Fields{
		"method":   req.Method,
		"target":   redactUserInfo(target),
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
		"remote":   req.RemoteAddr,
	}).Infof("%s served directory request", g.name)
}

// gatewayTarget extracts the directory URL from a request path such as
// /ldaps://host/dn?attrs. The raw request URI is used so escapes in the DN
// and the socket path of ldapi URLs survive untouched.
func gatewayTarget(req *http.Request) (*url.URL, bool) {
	raw := req.RequestURI
	if raw == "" {
		raw = req.URL.RequestURI()
	}
	raw = strings.TrimPrefix(raw, "/")

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, false
	}
	scheme = strings.ToLower(scheme)
	if !schemePattern.MatchString(scheme) {
		return nil, false
	}

	opaque, query, _ := strings.Cut("//"+rest, "?")
	target := &url.URL{Scheme: scheme, Opaque: opaque, RawQuery: query}

	hostport := strings.TrimPrefix(opaque, "//")
	if i := strings.IndexByte(hostport, '/'); i >= 0 {
		hostport = hostport[:i]
	}
	if i := strings.LastIndexByte(hostport, '@'); i >= 0 {
		hostport = hostport[i+1:]
	}
	target.Host = hostport
	return target, true
}

// redactUserInfo drops credentials embedded in the target before logging.
func redactUserInfo(target *url.URL) string {
	s := target.String()
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	authority, path, hasPath := strings.Cut(rest, "/")
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	if hasPath {
		return scheme + "://" + authority + "/" + path
	}
	return scheme + "://" + authority
}
