// Package syslogintake is the UDP front door for syslog records (spec.md
// §3/§4.1's "syslog messages from a network listener"). SPEC_FULL §1 scopes
// this to a minimal net.PacketConn reader plus a minimal RFC3164-shaped
// parser rather than a full wire implementation; no example repo in the
// pack imports a third-party syslog-parsing library (the original's Rust
// backend leans on the syslog_loose crate, which has no Go ecosystem
// counterpart in the pack), so both the socket handling and the parsing
// here are stdlib-only by necessity, not preference.
package syslogintake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
)

// maxDatagramBytes bounds a single read; RFC 3164 recommends 1024 bytes but
// real senders routinely exceed it, so this is generous rather than strict.
const maxDatagramBytes = 8192

// Listener reads syslog datagrams off a UDP socket, parses each into a
// model.SyslogRecord, and forwards it onto out. One malformed datagram
// never blocks or kills the listener; it is logged and dropped (spec.md's
// "Syslog parse -> drop message" edge case).
type Listener struct {
	conn   net.PacketConn
	out    chan<- model.SyslogRecord
	logger *logging.Logger
}

// Listen opens a UDP socket at addr. Callers must call Close or cancel the
// context passed to Run to release it.
func Listen(addr string, out chan<- model.SyslogRecord, logger *logging.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("syslogintake: listen on %s: %w", addr, err)
	}
	return &Listener{conn: conn, out: out, logger: logger}, nil
}

// LocalAddr reports the bound socket address, useful when addr used a
// ":0" ephemeral port in tests.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads datagrams until ctx is cancelled or the socket is closed.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, maxDatagramBytes)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("syslogintake: read: %w", err)
		}

		record, perr := parse(buf[:n], addr)
		metrics.SyslogDatagramsTotal.Inc()
		if perr != nil {
			metrics.SyslogParseFailuresTotal.Inc()
			l.warnf("syslogintake: dropping malformed datagram from %v: %v", addr, perr)
			continue
		}

		select {
		case l.out <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) warnf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Warnf(format, args...)
	}
}

// parse lifts a raw UDP datagram into a model.SyslogRecord. It understands
// the classic RFC 3164 shape: a "<PRI>" prefix encoding facility*8+severity,
// optionally followed by a timestamp and hostname, then the free-form
// message. Datagrams without a recognizable PRI prefix are rejected outright
// since that field is the only structured signal a minimal parser can rely
// on; everything after it is treated as opaque message text.
func parse(raw []byte, addr net.Addr) (model.SyslogRecord, error) {
	text := strings.TrimRight(string(raw), "\r\n")
	if text == "" {
		return model.SyslogRecord{}, errors.New("empty datagram")
	}

	facility, severity, rest, err := splitPriority(text)
	if err != nil {
		return model.SyslogRecord{}, err
	}

	source, message := splitSourceAndMessage(rest, addr)

	return model.SyslogRecord{
		Source:     source,
		Message:    message,
		Severity:   severity,
		Facility:   facility,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// splitPriority extracts the "<NNN>" prefix. PRI = facility*8 + severity,
// per RFC 3164 §4.1.1.
func splitPriority(text string) (model.SyslogFacility, model.SyslogSeverity, string, error) {
	if len(text) < 3 || text[0] != '<' {
		return 0, 0, "", errors.New("missing priority prefix")
	}
	end := strings.IndexByte(text, '>')
	if end < 2 {
		return 0, 0, "", errors.New("malformed priority prefix")
	}
	pri, err := strconv.Atoi(text[1:end])
	if err != nil || pri < 0 || pri > 191 {
		return 0, 0, "", fmt.Errorf("invalid priority value %q", text[1:end])
	}
	facility := model.SyslogFacility(pri / 8)
	severity := model.SyslogSeverity(pri % 8)
	return facility, severity, strings.TrimSpace(text[end+1:]), nil
}

// splitSourceAndMessage takes a best effort at recovering the reporting
// hostname from an RFC 3164 payload: the first host-shaped token that
// follows the leading timestamp tokens is the hostname, and the tokens after
// it form the message (the timestamp itself is skipped rather than parsed,
// since the engine only needs the hostname key and the free-form text). A
// payload that does not open with timestamp tokens carries no header, so
// the sender's own IP is used instead, keeping the record attributable.
func splitSourceAndMessage(rest string, addr net.Addr) (string, string) {
	fields := strings.Fields(rest)
	for i, field := range fields {
		if looksLikeHostname(field) {
			if i == 0 {
				break
			}
			return field, strings.TrimSpace(strings.Join(fields[i+1:], " "))
		}
	}
	if rest == "" {
		return hostFromAddr(addr), ""
	}
	return hostFromAddr(addr), rest
}

// looksLikeHostname rejects the RFC 3164 month/day timestamp tokens
// ("Jan", "Feb", ...) and pure-numeric tokens (day-of-month, HH:MM:SS) so
// only an actual host-shaped token is taken as the source.
func looksLikeHostname(field string) bool {
	switch field {
	case "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec":
		return false
	}
	if strings.ContainsAny(field, ":") {
		return false
	}
	if _, err := strconv.Atoi(field); err == nil {
		return false
	}
	return true
}

func hostFromAddr(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
