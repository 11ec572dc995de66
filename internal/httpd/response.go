package httpd

import (
	"log/slog"
	"strconv"
	"strings"
)

// MaxResponseHeaders bounds the outbound header list.
const MaxResponseHeaders = 32

const initialBodyCapacity = 4096

// statusText is the closed status table. Codes outside it serialize
// with the message "Unknown".
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	429: "Too Many Requests",
	500: "Internal Server Error",
	503: "Service Unavailable",
}

// Response is one outbound HTTP response, built incrementally and
// serialized by Build.
type Response struct {
	StatusCode    int
	StatusMessage string

	headers []string // preformatted "Name: value" lines
	body    []byte
}

// NewResponse returns a response defaulting to 200 OK with an empty body.
func NewResponse() *Response {
	return &Response{
		StatusCode:    200,
		StatusMessage: "OK",
		body:          make([]byte, 0, initialBodyCapacity),
	}
}

// SetStatus rewrites the status code and its message from the closed table.
func (r *Response) SetStatus(code int) {
	r.StatusCode = code
	msg, ok := statusText[code]
	if !ok {
		msg = "Unknown"
	}
	r.StatusMessage = msg
}

// AddHeader appends a preformatted header line. Once the header list is
// full further headers are dropped with a warning.
func (r *Response) AddHeader(name, value string) {
	if len(r.headers) >= MaxResponseHeaders {
		slog.Warn("too many response headers", "dropped", name)
		return
	}
	r.headers = append(r.headers, name+": "+value)
}

// Headers returns the preformatted header lines in insertion order.
func (r *Response) Headers() []string {
	return r.headers
}

// Body returns the current body bytes.
func (r *Response) Body() []byte {
	return r.body
}

// grow ensures the body can hold needed bytes, doubling past the
// requirement when it reallocates.
func (r *Response) grow(needed int) {
	if needed <= cap(r.body) {
		return
	}
	nb := make([]byte, len(r.body), needed*2)
	copy(nb, r.body)
	r.body = nb
}

// setContentLength removes any existing Content-Length line and inserts
// one matching the current body length, keeping the exactly-one invariant.
func (r *Response) setContentLength() {
	for i, h := range r.headers {
		if strings.HasPrefix(h, "Content-Length:") {
			r.headers = append(r.headers[:i], r.headers[i+1:]...)
			break
		}
	}
	r.AddHeader("Content-Length", strconv.Itoa(len(r.body)))
}

// SetBody replaces the body content and recomputes Content-Length.
func (r *Response) SetBody(body string) {
	r.grow(len(body))
	r.body = append(r.body[:0], body...)
	r.setContentLength()
}

// AppendBody concatenates data onto the body and recomputes Content-Length.
func (r *Response) AppendBody(data string) {
	r.grow(len(r.body) + len(data))
	r.body = append(r.body, data...)
	r.setContentLength()
}

// SetContentType adds a Content-Type header.
func (r *Response) SetContentType(contentType string) {
	r.AddHeader("Content-Type", contentType)
}

// SetCookie emits a single Set-Cookie header with a fixed Path=/.
// A zero maxAge omits the Max-Age attribute.
func (r *Response) SetCookie(name, value string, maxAge int, httpOnly, secure bool, sameSite string) {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	if maxAge != 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(maxAge))
	}
	if httpOnly {
		b.WriteString("; HttpOnly")
	}
	if secure {
		b.WriteString("; Secure")
	}
	if sameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(sameSite)
	}
	b.WriteString("; Path=/")
	r.AddHeader("Set-Cookie", b.String())
}

// DeleteCookie expires the named cookie with an empty value and a
// negative Max-Age.
func (r *Response) DeleteCookie(name string) {
	r.SetCookie(name, "", -1, true, false, "Strict")
}

// Redirect sets a 301 (permanent) or 302 (temporary) status, adds a
// Location header, and empties the body.
func (r *Response) Redirect(url string, permanent bool) {
	if permanent {
		r.SetStatus(301)
	} else {
		r.SetStatus(302)
	}
	r.AddHeader("Location", url)
	r.SetBody("")
}

// Build serializes the response into its wire form: status line, header
// lines, a blank line, then the body, with no trailing data.
func (r *Response) Build() []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteByte(' ')
	b.WriteString(r.StatusMessage)
	b.WriteString("\r\n")
	for _, h := range r.headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.body))
	out = append(out, b.String()...)
	out = append(out, r.body...)
	return out
}
