package rtsp

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

const (
	StatusOK                        = 200
	StatusMethodNotAllowed          = 405
	StatusNotEnoughBandwidth        = 453
	StatusSessionNotFound           = 454
	StatusMethodNotValidInThisState = 455
	StatusAggregateNotAllowed       = 459
	StatusOnlyAggregateAllowed      = 460
	StatusUnsupportedTransport      = 461
	StatusInternalServerError       = 500
	StatusServiceUnavailable        = 503
	StatusVersionNotSupported       = 505
)

var StatusText = map[int]string{
	StatusOK:                        "OK",
	StatusMethodNotAllowed:          "Method Not Allowed",
	StatusNotEnoughBandwidth:        "Not Enough Bandwidth",
	StatusSessionNotFound:           "Session Not Found",
	StatusMethodNotValidInThisState: "Method Not Valid in This State",
	StatusAggregateNotAllowed:       "Aggregate operation not allowed",
	StatusOnlyAggregateAllowed:      "Only aggregate operation allowed",
	StatusUnsupportedTransport:      "Unsupported Transport",
	StatusInternalServerError:       "Internal Server Error",
	StatusServiceUnavailable:        "Service Unavailable",
	StatusVersionNotSupported:       "RTSP Version Not Supported",
}

type headerField struct {
	key, value string
}

// Response is serialized once by Bytes. CSeq and Date always come first;
// Content-Length is derived from Body.
type Response struct {
	Status int
	CSeq   int
	Date   time.Time
	Body   []byte

	header []headerField
}

func NewResponse(status, cseq int) *Response {
	return &Response{
		Status: status,
		CSeq:   cseq,
		Date:   time.Now(),
	}
}

// Set replaces key, keeping the position of its first appearance.
func (r *Response) Set(key, value string) *Response {
	for i := range r.header {
		if r.header[i].key == key {
			r.header[i].value = value
			return r
		}
	}
	r.header = append(r.header, headerField{key, value})
	return r
}

func (r *Response) Get(key string) string {
	for _, f := range r.header {
		if f.key == key {
			return f.value
		}
	}
	return ""
}

func (r *Response) Text() string {
	if s, ok := StatusText[r.Status]; ok {
		return s
	}
	return "Unknown"
}

func (r *Response) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", Version, r.Status, r.Text())
	fmt.Fprintf(&b, "CSeq: %d\r\n", r.CSeq)
	fmt.Fprintf(&b, "Date: %s\r\n", r.Date.UTC().Format(DateFormat))
	for _, f := range r.header {
		fmt.Fprintf(&b, "%s: %s\r\n", f.key, f.value)
	}
	if len(r.Body) > 0 {
		b.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}

func (r *Response) String() string {
	return fmt.Sprintf("%d %s", r.Status, r.Text())
}
