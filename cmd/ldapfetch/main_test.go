package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiltonsr/ldapfetch"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfigFile(t *testing.T) {
	config, err := readConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, ldapfetch.CreateConfig(), config)

	path := writeFile(t, "ldapfetch.yaml", `
timeout: 5s
sizeLimit: 100
bindDN: cn=reader,dc=example,dc=com
strictAuth: true
realm: corp
`)
	config, err = readConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 100, config.SizeLimit)
	assert.Equal(t, "cn=reader,dc=example,dc=com", config.BindDN)
	assert.True(t, config.StrictAuth)
	assert.Equal(t, "corp", config.Realm)
	assert.True(t, config.Enabled, "defaults survive for keys the file leaves out")

	empty := writeFile(t, "empty.yaml", "")
	config, err = readConfigFile(empty)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestReadConfigFileErrors(t *testing.T) {
	_, err := readConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = readConfigFile(writeFile(t, "unknown.yaml", "colour: blue\n"))
	assert.ErrorContains(t, err, "parse config")
}

func TestNewGetRequest(t *testing.T) {
	req, err := newGetRequest(context.Background(), "LDAPI://%2Fvar%2Frun%2Fslapd%2Fldapi/dc=x?cn", &getParameters{
		Head:     true,
		Accept:   "text/ldif",
		User:     "cn=admin",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodHead, req.Method)
	assert.Equal(t, "ldapi://%2Fvar%2Frun%2Fslapd%2Fldapi/dc=x?cn", req.URL.String())
	assert.Equal(t, "text/ldif", req.Header.Get("Accept"))

	user, password, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "cn=admin", user)
	assert.Equal(t, "secret", password)

	_, err = newGetRequest(context.Background(), "dc=example,dc=com", &getParameters{})
	assert.Error(t, err)
}

func TestRunGetFailure(t *testing.T) {
	var out bytes.Buffer
	err := runGet(context.Background(), &out, ldapfetch.CreateConfig(), "ftp://example.com/", &getParameters{})
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(out.String(), "HTTP/1.0 500 Internal Server Error\n"))
	assert.Contains(t, out.String(), "Content-Type: text/plain\n")
	assert.Contains(t, out.String(), `unsupported URL scheme "ftp"`)
}

func TestWriteResponse(t *testing.T) {
	resp := &http.Response{
		Proto:      "HTTP/1.0",
		Status:     "200 Document follows",
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type":   {"application/json; charset=utf-8"},
			"Content-Length": {"3"},
		},
		Body: io.NopCloser(strings.NewReader("{}\n")),
	}

	var out bytes.Buffer
	require.NoError(t, writeResponse(&out, resp))
	assert.Equal(t, "HTTP/1.0 200 Document follows\n"+
		"Content-Length: 3\n"+
		"Content-Type: application/json; charset=utf-8\n"+
		"\n"+
		"{}\n", out.String())
}
