package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"codeberg.org/okkola/labdaq/internal/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var hostInit sync.Once

func init() {
	Register("i2c", func(cfg Config) (Transport, error) {
		return OpenI2C(cfg.Address)
	})
}

// I2C drives register-oriented chips (ADCs, bridge frontends) on an I²C bus.
// Descriptor command templates speak a tiny exchange language:
//
//	TX <hex-bytes> <read-len>
//
// writes the bytes, then reads read-len bytes and replies with their value
// as a signed big-endian decimal integer ("OK" when read-len is 0). That
// keeps chip registers in the descriptor document, not in code.
type I2C struct {
	mu     sync.Mutex
	bus    i2c.BusCloser
	dev    *i2c.Dev
	closed bool
}

// OpenI2C opens the device addressed as "bus:addr", e.g. "2:0x48".
func OpenI2C(address string) (*I2C, error) {
	errFactory := errors.New()

	busName, chipAddr, err := splitI2CAddress(address)
	if err != nil {
		return nil, err
	}

	var hostErr error
	hostInit.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, hostErr)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}

	return &I2C{
		bus: bus,
		dev: &i2c.Dev{Addr: chipAddr, Bus: bus},
	}, nil
}

func (t *I2C) Exchange(ctx context.Context, cmd string) (string, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", errFactory.New(ErrClosed)
	}

	writeBytes, readLen, err := parseI2CCommand(cmd)
	if err != nil {
		return "", err
	}

	readBuf := make([]byte, readLen)
	if err := t.dev.Tx(writeBytes, readBuf); err != nil {
		return "", errFactory.Wrap(ErrExchangeFailed, err)
	}

	if readLen == 0 {
		return "OK", nil
	}

	var value int64
	for _, b := range readBuf {
		value = value<<8 | int64(b)
	}
	// Sign-extend the big-endian register value.
	bits := uint(readLen * 8)
	if bits < 64 && value >= 1<<(bits-1) {
		value -= 1 << bits
	}

	return strconv.FormatInt(value, 10), nil
}

func (t *I2C) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.bus.Close()
}

func splitI2CAddress(address string) (string, uint16, error) {
	errFactory := errors.New()

	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 {
		return "", 0, errFactory.WithData(ErrBadAddress, address)
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 16)
	if err != nil {
		return "", 0, errFactory.WithData(ErrBadAddress, address)
	}

	return parts[0], uint16(addr), nil
}

func parseI2CCommand(cmd string) ([]byte, int, error) {
	errFactory := errors.New()

	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) != 3 || fields[0] != "TX" {
		return nil, 0, errFactory.WithData(ErrExchangeFailed, fmt.Sprintf("bad i2c command %q", cmd))
	}

	writeBytes, err := hex.DecodeString(fields[1])
	if err != nil {
		return nil, 0, errFactory.WithData(ErrExchangeFailed, fmt.Sprintf("bad i2c payload %q", fields[1]))
	}

	readLen, err := strconv.Atoi(fields[2])
	if err != nil || readLen < 0 || readLen > 8 {
		return nil, 0, errFactory.WithData(ErrExchangeFailed, fmt.Sprintf("bad i2c read length %q", fields[2]))
	}

	return writeBytes, readLen, nil
}
