package watcher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMalformedLine marks a log line that could not be parsed. Callers skip
// the line and keep the stream alive.
var ErrMalformedLine = errors.New("malformed log line")

const nginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

// Parser converts raw log lines into RequestOutcome records.
//
// The proxy writes one JSON object per line. Recognized fields:
//
//	time            RFC3339 or nginx local-time format (optional; falls
//	                back to the wall clock)
//	pool            pool label; "-" and "" mean unknown
//	release         release label (optional)
//	status          HTTP status returned to the client (required)
//	upstream_addr   address list; comma-separated when the proxy retried
//	upstream_status upstream status list, same shape as upstream_addr
//	request_time    request latency in seconds (optional)
//
// When the proxy retried against another upstream, the LAST entry of a list
// field is the attempt whose result the client actually saw, so the last
// status and the last address are the effective ones.
type Parser struct {
	blueIPs  []string
	greenIPs []string
	now      func() time.Time
}

// NewParser creates a parser. blueIPs/greenIPs are optional operator-supplied
// address fragments used as a last resort when inferring the pool from
// upstream_addr.
func NewParser(blueIPs, greenIPs []string) *Parser {
	return &Parser{
		blueIPs:  blueIPs,
		greenIPs: greenIPs,
		now:      time.Now,
	}
}

// Parse converts one raw line into a RequestOutcome. Malformed or
// incomplete lines return an error wrapping ErrMalformedLine.
func (p *Parser) Parse(line string) (RequestOutcome, error) {
	line = strings.TrimSpace(line)
	if line == "" || !gjson.Valid(line) {
		return RequestOutcome{}, fmt.Errorf("%w: not a JSON object", ErrMalformedLine)
	}

	status := gjson.Get(line, "status")
	if !status.Exists() {
		return RequestOutcome{}, fmt.Errorf("%w: missing status", ErrMalformedLine)
	}
	statusCode := int(status.Int())
	if statusCode < 100 || statusCode > 599 {
		return RequestOutcome{}, fmt.Errorf("%w: invalid status %q", ErrMalformedLine, status.String())
	}

	outcome := RequestOutcome{
		Status:       statusCode,
		Release:      gjson.Get(line, "release").String(),
		UpstreamAddr: gjson.Get(line, "upstream_addr").String(),
		Timestamp:    p.parseTime(gjson.Get(line, "time").String()),
	}

	if rt := gjson.Get(line, "request_time"); rt.Exists() {
		outcome.Latency = time.Duration(rt.Float() * float64(time.Second))
	}

	pool := gjson.Get(line, "pool").String()
	if pool == "" || pool == "-" {
		pool = p.inferPool(outcome.UpstreamAddr)
	}
	outcome.Pool = pool

	outcome.IsError = statusCode >= 500
	if !outcome.IsError {
		// The client-facing status can be 200 after an internal retry; the
		// upstream status list still records the 5xx attempts. Only the
		// final attempt counts.
		if last := lastListEntry(gjson.Get(line, "upstream_status").String()); strings.HasPrefix(last, "5") {
			outcome.IsError = true
		}
	}

	return outcome, nil
}

func (p *Parser) parseTime(raw string) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
		if ts, err := time.Parse(nginxTimeLayout, raw); err == nil {
			return ts
		}
	}
	return p.now()
}

// inferPool determines the pool from the upstream address when the log line
// carries no usable pool label. The last comma-separated address is the one
// that served the request.
func (p *Parser) inferPool(upstreamAddr string) string {
	addr := strings.ToLower(lastListEntry(upstreamAddr))
	if addr == "" {
		return ""
	}

	switch {
	case strings.Contains(addr, "blue"):
		return "blue"
	case strings.Contains(addr, "green"):
		return "green"
	case strings.Contains(addr, "8081"):
		return "blue"
	case strings.Contains(addr, "8082"):
		return "green"
	}

	for _, ip := range p.blueIPs {
		if ip != "" && strings.Contains(addr, ip) {
			return "blue"
		}
	}
	for _, ip := range p.greenIPs {
		if ip != "" && strings.Contains(addr, ip) {
			return "green"
		}
	}

	return ""
}

// lastListEntry returns the last non-empty element of a comma or space
// separated list, or the trimmed input when it is not a list.
func lastListEntry(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return ""
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	for i := len(fields) - 1; i >= 0; i-- {
		if f := strings.TrimSpace(fields[i]); f != "" && f != "-" {
			return f
		}
	}
	return ""
}
