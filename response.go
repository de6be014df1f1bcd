package ldapfetch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	auth "github.com/abbot/go-http-auth"

	"github.com/wiltonsr/ldapfetch/render"
)

const (
	contentType   = "Content-Type"
	contentLength = "Content-Length"

	statusDocumentFollows = "Document follows"
)

// documentResponse wraps a rendered result set.
func documentResponse(req *http.Request, result *render.Result) *http.Response {
	header := make(http.Header)
	header.Set(contentType, result.ContentType)
	return newResponse(req, http.StatusOK, statusDocumentFollows, header, result.Body)
}

// errorResponse carries text, verbatim, as a plain text body.
func errorResponse(req *http.Request, code int, text string) *http.Response {
	header := make(http.Header)
	header.Set(contentType, "text/plain")
	return newResponse(req, code, http.StatusText(code), header, []byte(text))
}

// challengeResponse asks the client for Basic credentials.
func challengeResponse(req *http.Request, realm string) *http.Response {
	h := auth.NormalHeaders
	header := make(http.Header)
	header.Set(contentType, h.UnauthContentType)
	header.Set(h.Authenticate, fmt.Sprintf(`Basic realm="%s"`, realm))
	return newResponse(req, h.UnauthCode, http.StatusText(h.UnauthCode), header, []byte(h.UnauthResponse))
}

// newResponse builds a complete response for body. Content-Length always
// describes body; a HEAD request gets the headers without the body.
func newResponse(req *http.Request, code int, reason string, header http.Header, body []byte) *http.Response {
	header.Set(contentLength, strconv.Itoa(len(body)))

	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", code, reason),
		StatusCode:    code,
		Proto:         "HTTP/1.0",
		ProtoMajor:    1,
		ProtoMinor:    0,
		Header:        header,
		ContentLength: int64(len(body)),
		Request:       req,
	}

	if req != nil && req.Method == http.MethodHead {
		resp.Body = http.NoBody
	} else {
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp
}
