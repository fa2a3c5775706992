package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nareix/gastream/format/rtsp"
)

var debugRtspRequest = false
var debugRtspResponse = false
var debugRtspInterleaved = false
var debugRtspNetEvent = false
var debugRtspOptsMap = map[string]*bool{
	"req":         &debugRtspRequest,
	"resp":        &debugRtspResponse,
	"interleaved": &debugRtspInterleaved,
	"net":         &debugRtspNetEvent,
}

type debugFlags struct {
	a []*[]string
	m []map[string]*bool
}

func debugOptsString(m map[string]*bool) string {
	a := []string{}
	for k := range m {
		a = append(a, k)
	}
	return strings.Join(a, ",")
}

func (f *debugFlags) AddOpt(fs *pflag.FlagSet, name string, optmap map[string]*bool) {
	f.a = append(f.a, fs.StringSlice(name, nil, `supported options: `+debugOptsString(optmap)))
	f.m = append(f.m, optmap)
}

func (f *debugFlags) Parse() bool {
	for i := range f.a {
		a := *f.a[i]
		m := f.m[i]
		for _, o := range a {
			b := m[o]
			if b == nil {
				return false
			}
			*b = true
		}
	}
	return true
}

func responseLine(id string, resp *rtsp.Response) string {
	return fmt.Sprint("> ", id, " ", resp.String(), " CSeq ", resp.CSeq)
}

func handleRtspServerFlags(s *rtsp.Server) {
	if debugRtspNetEvent {
		s.LogEvent = func(c *rtsp.Conn, e int) {
			fmt.Println("RtspEvent", c.ID, c.RemoteAddr(), rtsp.EventString[e])
		}
	}
	if debugRtspRequest {
		s.LogRequest = func(c *rtsp.Conn, req *rtsp.Request) {
			fmt.Println("<", c.ID, req.Method, req.URL, "CSeq", req.CSeq)
			for k, v := range req.Header {
				fmt.Println("<", k+":", strings.Join(v, ", "))
			}
		}
	}
	if debugRtspResponse {
		s.LogResponse = func(c *rtsp.Conn, resp *rtsp.Response) {
			fmt.Println(responseLine(c.ID, resp))
		}
	}
	if debugRtspInterleaved {
		s.LogInterleaved = func(c *rtsp.Conn, isRead bool, b []byte) {
			dir := ""
			if isRead {
				dir = "<"
			} else {
				dir = ">"
			}
			fmt.Println(dir, len(b))
			fmt.Print(hex.Dump(b))
		}
	}
}
