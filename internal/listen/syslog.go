package listen

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// SyslogListener receives syslog datagrams from Proxmox nodes on a UDP
// socket and turns recognized lines into structured events.
type SyslogListener struct {
	addr   string
	emit   EmitFunc
	logger *slog.Logger
}

// NewSyslogListener creates a SyslogListener bound to addr (host:port).
func NewSyslogListener(addr string, emit EmitFunc, logger *slog.Logger) *SyslogListener {
	return &SyslogListener{addr: addr, emit: emit, logger: logger}
}

// Name returns the source identifier.
func (l *SyslogListener) Name() string { return "syslog" }

// Run binds the UDP socket and forwards every received message until ctx is
// cancelled. A UDP socket has no connection to lose, so the listener goes
// straight to Running and never reconnects.
func (l *SyslogListener) Run(ctx context.Context, report ReportFunc) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", l.addr)
	if err != nil {
		return fmt.Errorf("binding syslog socket on %s: %w", l.addr, err)
	}

	// Cancellation unblocks ReadFrom by closing the socket.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	report(StateRunning)
	l.logger.Info("syslog listener bound", "addr", l.addr)

	buf := make([]byte, 8192)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("syslog read error", "error", err)
			continue
		}

		msg := strings.TrimSpace(string(buf[:n]))
		if msg == "" {
			continue
		}

		source := ""
		if host, _, splitErr := net.SplitHostPort(from.String()); splitErr == nil {
			source = host
		}

		title, body, attrs := parseSyslogMessage(msg, source)
		l.emit(title, body, attrs)
	}
}

// TestConnection checks that the configured UDP port can be bound.
func (l *SyslogListener) TestConnection(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", l.addr)
	if err != nil {
		return fmt.Errorf("cannot bind %s: %w", l.addr, err)
	}
	return conn.Close()
}
