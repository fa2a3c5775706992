package rtsp

import (
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Request struct {
	Method  string
	URL     string
	Proto   string
	Path    string
	Header  textproto.MIMEHeader
	CSeq    int
	Session string
}

// parseRequestLine splits "METHOD URL PROTO".
func parseRequestLine(line string) (req *Request, err error) {
	f := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(f) != 3 {
		err = errors.Wrapf(ErrBadRequest, "request line %q", line)
		return
	}
	req = &Request{
		Method: f[0],
		URL:    f[1],
		Proto:  f[2],
		Header: textproto.MIMEHeader{},
	}
	req.Path = urlPath(req.URL)
	if req.Proto != Version {
		err = errors.Wrapf(ErrVersion, "%q", req.Proto)
	}
	return
}

// urlPath returns the path of an absolute rtsp:// URL, or the raw string
// when it does not parse as one.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		if err == nil && u.Host != "" {
			return "/"
		}
		return raw
	}
	return u.Path
}

// addHeaderLine records "Key: value". Lines without a colon are ignored.
func (req *Request) addHeaderLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return
	}
	key := strings.TrimSpace(line[:i])
	val := strings.TrimSpace(line[i+1:])
	req.Header.Add(key, val)

	switch {
	case strings.EqualFold(key, "CSeq"):
		req.CSeq = parseCSeq(val)
	case strings.EqualFold(key, "Session"):
		req.Session = parseSession(val)
	}
}

// parseCSeq reads the leading decimal digits, ignoring trailing garbage.
func parseCSeq(v string) int {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(v[:end])
	return n
}

// parseSession drops parameters such as ";timeout=60" and stray CR/LF.
func parseSession(v string) string {
	v = strings.TrimLeft(v, " \t")
	if i := strings.IndexAny(v, "; \t\r\n"); i >= 0 {
		v = v[:i]
	}
	return v
}

func (req *Request) HasSession() bool {
	return req.Session != ""
}
