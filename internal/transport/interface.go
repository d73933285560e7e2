package transport

import "context"

// Transport is one exclusive wire connection to an instrument. A driver owns
// exactly one transport for its whole life; Close releases the underlying
// connection unconditionally.
type Transport interface {
	// Exchange sends one command and returns the instrument's reply line.
	Exchange(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Config selects and addresses a transport.
type Config struct {
	Kind    string
	Address string
}

// Factory constructs a transport of one kind.
type Factory func(cfg Config) (Transport, error)
