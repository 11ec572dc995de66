package httpd

import (
	"bytes"
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

const (
	// MaxHeaders bounds both the header list and the cookie list.
	MaxHeaders = 32
	// MaxBodySize caps captured request bodies at 1 MiB.
	MaxBodySize = 1 << 20
)

// ErrMalformedRequest is returned for anything ParseRequest cannot make
// sense of: a missing CRLF after the request line, or a request line that
// does not have exactly three tokens.
var ErrMalformedRequest = errors.New("httpd: malformed request")

// Method is the request method. Unrecognized methods parse to
// MethodUnknown rather than failing.
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodHead
	MethodPut
	MethodDelete
	MethodUnknown
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodHead:
		return "HEAD"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func parseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "HEAD":
		return MethodHead
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnknown
	}
}

// HeaderField is one name/value pair. Duplicates are allowed; lookups
// return the first match.
type HeaderField struct {
	Name  string
	Value string
}

// Request is one parsed HTTP request. The identity fields at the bottom
// start empty and are populated only by the session validator, never by
// the parser.
type Request struct {
	Method  Method
	Path    string
	Query   string
	Proto   string
	Headers []HeaderField
	Cookies []string // raw "name=value" pairs from the Cookie header
	Body    []byte   // nil when absent; non-nil but empty is a valid state

	ClientIP   string
	ClientPort int

	UserID        int
	AccountID     int
	UserEmail     string
	UserRole      string
	Authenticated bool
}

// ParseRequest parses a raw request buffer as read off the socket.
// The buffer is treated as the complete request; there is no
// Content-Length-driven continuation.
func ParseRequest(buf []byte) (*Request, error) {
	lineEnd := bytes.Index(buf, []byte("\r\n"))
	if lineEnd < 0 {
		return nil, ErrMalformedRequest
	}

	fields := strings.Fields(string(buf[:lineEnd]))
	if len(fields) != 3 {
		return nil, ErrMalformedRequest
	}

	req := &Request{
		Method: parseMethod(fields[0]),
		Path:   fields[1],
		Proto:  fields[2],
	}

	// Split path and query string at the first '?'.
	if i := strings.IndexByte(req.Path, '?'); i >= 0 {
		req.Query = req.Path[i+1:]
		req.Path = req.Path[:i]
	}

	rest := buf[lineEnd+2:]
	for {
		lineEnd = bytes.Index(rest, []byte("\r\n"))
		if lineEnd < 0 {
			break
		}
		line := string(rest[:lineEnd])
		rest = rest[lineEnd+2:]

		// Empty line marks end of headers.
		if line == "" {
			break
		}

		if len(req.Headers) >= MaxHeaders {
			slog.Warn("too many headers, ignoring remaining")
			break
		}

		// Lines without a colon are skipped, not fatal.
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}

		name := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")
		req.Headers = append(req.Headers, HeaderField{Name: name, Value: value})

		if strings.EqualFold(name, "Cookie") {
			parseCookies(req, value)
		}
	}

	// Body capture applies only to POST and PUT: everything after the
	// first blank line in the original buffer, up to what was read.
	if req.Method == MethodPost || req.Method == MethodPut {
		if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
			body := buf[i+4:]
			if len(body) <= MaxBodySize {
				req.Body = make([]byte, len(body))
				copy(req.Body, body)
			}
		}
	}

	return req, nil
}

func parseCookies(req *Request, header string) {
	for _, pair := range strings.Split(header, ";") {
		if len(req.Cookies) >= MaxHeaders {
			slog.Warn("too many cookies, ignoring remaining")
			return
		}
		pair = strings.TrimLeft(pair, " ")
		if pair == "" {
			continue
		}
		req.Cookies = append(req.Cookies, pair)
	}
}

// Header returns the first header value with the given name,
// compared case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Cookie returns the value of the named cookie.
func (r *Request) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if strings.HasPrefix(c, name) && len(c) > len(name) && c[len(name)] == '=' {
			return c[len(name)+1:], true
		}
	}
	return "", false
}

// QueryParam returns the named query-string parameter, percent-decoded
// with '+' treated as space. Decoding happens here, never during parsing.
func (r *Request) QueryParam(name string) (string, bool) {
	return formValue(r.Query, name)
}

// PostParam returns the named body parameter. It only applies to
// application/x-www-form-urlencoded bodies.
func (r *Request) PostParam(name string) (string, bool) {
	if r.Body == nil {
		return "", false
	}
	ct, ok := r.Header("Content-Type")
	if !ok || !strings.Contains(ct, "application/x-www-form-urlencoded") {
		return "", false
	}
	return formValue(string(r.Body), name)
}

func formValue(encoded, name string) (string, bool) {
	if encoded == "" {
		return "", false
	}
	for _, param := range strings.Split(encoded, "&") {
		eq := strings.IndexByte(param, '=')
		if eq < 0 {
			continue
		}
		if param[:eq] != name {
			continue
		}
		val, err := url.QueryUnescape(param[eq+1:])
		if err != nil {
			return "", false
		}
		return val, true
	}
	return "", false
}
