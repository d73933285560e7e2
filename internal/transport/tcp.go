package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"codeberg.org/okkola/labdaq/internal/errors"
)

const (
	tcpDialTimeout = 5 * time.Second
	tcpIOTimeout   = 2 * time.Second
)

func init() {
	Register("tcp", func(cfg Config) (Transport, error) {
		return DialTCP(cfg.Address)
	})
}

// TCP is a line-oriented socket transport for SCPI-style instruments behind
// GPIB-LAN or serial-LAN bridges: one command out, one reply line back.
type TCP struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// DialTCP connects to addr (host:port) and returns the transport. The
// connection is held for the transport's whole life.
func DialTCP(addr string) (*TCP, error) {
	errFactory := errors.New()

	conn, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
	if err != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}

	return &TCP{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (t *TCP) Exchange(ctx context.Context, cmd string) (string, error) {
	errFactory := errors.New()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", errFactory.New(ErrClosed)
	}

	deadline := time.Now().Add(tcpIOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetDeadline(deadline); err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	if _, err := t.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.conn.Close()
}
