// Package driver turns the logical operations read/write/configure/bulk-read
// into the wire exchanges a device descriptor defines. One driver owns one
// transport connection for its whole life; transient wire failures are
// retried with bounded backoff before escalating to the owning worker.
package driver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/transport"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 10 * time.Millisecond
	defaultMaxInterval     = 250 * time.Millisecond
)

// Driver adapts one physical instrument behind the uniform operation set.
type Driver struct {
	desc       *descriptor.DeviceDescriptor
	tr         transport.Transport
	replies    map[descriptor.Operation]*regexp.Regexp
	maxRetries uint64
	notify     backoff.Notify
}

// Option configures a driver.
type Option func(*Driver)

// WithMaxRetries bounds how many times a failed exchange is retried before
// the error escalates.
func WithMaxRetries(n uint64) Option {
	return func(d *Driver) { d.maxRetries = n }
}

// WithRetryNotify registers a callback invoked on every retried exchange,
// so the owning worker can surface retry diagnostics.
func WithRetryNotify(notify backoff.Notify) Option {
	return func(d *Driver) { d.notify = notify }
}

// Open acquires the descriptor's transport and builds the driver over it.
func Open(desc *descriptor.DeviceDescriptor, opts ...Option) (*Driver, error) {
	errFactory := errors.New()

	tr, err := transport.Open(transport.Config{
		Kind:    desc.Transport.Kind,
		Address: desc.Transport.Address,
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrOpenTransport, err)
	}

	return New(desc, tr, opts...), nil
}

// New builds a driver over an already-open transport. The driver takes
// ownership: Close releases the transport unconditionally.
func New(desc *descriptor.DeviceDescriptor, tr transport.Transport, opts ...Option) *Driver {
	d := &Driver{
		desc:       desc,
		tr:         tr,
		replies:    make(map[descriptor.Operation]*regexp.Regexp),
		maxRetries: defaultMaxRetries,
	}
	for _, cmd := range desc.Commands {
		if cmd.Reply != "" {
			// Validated at descriptor load time.
			d.replies[cmd.Operation] = regexp.MustCompile(cmd.Reply)
		}
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Descriptor returns the descriptor this driver was built from.
func (d *Driver) Descriptor() *descriptor.DeviceDescriptor {
	return d.desc
}

// Supports reports whether the descriptor defines the given operation.
func (d *Driver) Supports(op descriptor.Operation) bool {
	_, ok := d.desc.Command(op)
	return ok
}

// Capabilities lists the operations the descriptor defines.
func (d *Driver) Capabilities() []descriptor.Operation {
	return d.desc.Capabilities()
}

// Read queries one channel and returns its raw numeric value.
func (d *Driver) Read(ctx context.Context, channel int) (float64, error) {
	errFactory := errors.New()

	cmd, ok := d.desc.Command(descriptor.OpRead)
	if !ok {
		return 0, errFactory.WithData(ErrUnsupportedCapability, string(descriptor.OpRead))
	}
	if _, ok := d.desc.ChannelByIndex(channel); !ok {
		return 0, errFactory.WithData(ErrUnknownChannel, channel)
	}

	wire := expandTemplate(cmd.Template, &channel, nil)

	var value float64
	err := d.exchange(ctx, wire, func(reply string) error {
		v, err := d.parseReply(descriptor.OpRead, reply)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	return value, nil
}

// BulkRead queries every channel in one exchange. The reply is a
// comma-separated list in descriptor channel order; the result maps channel
// index to raw value.
func (d *Driver) BulkRead(ctx context.Context) (map[int]float64, error) {
	errFactory := errors.New()

	cmd, ok := d.desc.Command(descriptor.OpBulkRead)
	if !ok {
		return nil, errFactory.WithData(ErrUnsupportedCapability, string(descriptor.OpBulkRead))
	}

	values := make(map[int]float64, len(d.desc.Channels))
	err := d.exchange(ctx, cmd.Template, func(reply string) error {
		fields := strings.Split(reply, ",")
		if len(fields) != len(d.desc.Channels) {
			return errFactory.WithData(ErrReplyParse,
				fmt.Sprintf("bulk reply has %d fields for %d channels", len(fields), len(d.desc.Channels)))
		}
		for i, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return errFactory.WithData(ErrReplyParse, field)
			}
			values[d.desc.Channels[i].Index] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

// Write sets one channel to the given value.
func (d *Driver) Write(ctx context.Context, channel int, value float64) error {
	errFactory := errors.New()

	cmd, ok := d.desc.Command(descriptor.OpWrite)
	if !ok {
		return errFactory.WithData(ErrUnsupportedCapability, string(descriptor.OpWrite))
	}
	if _, ok := d.desc.ChannelByIndex(channel); !ok {
		return errFactory.WithData(ErrUnknownChannel, channel)
	}

	formatted := strconv.FormatFloat(value, 'g', -1, 64)
	wire := expandTemplate(cmd.Template, &channel, &formatted)

	return d.exchange(ctx, wire, nil)
}

// Configure sends the descriptor's configure command, substituting value for
// the {value} placeholder when the template has one.
func (d *Driver) Configure(ctx context.Context, value string) error {
	errFactory := errors.New()

	cmd, ok := d.desc.Command(descriptor.OpConfigure)
	if !ok {
		return errFactory.WithData(ErrUnsupportedCapability, string(descriptor.OpConfigure))
	}

	wire := expandTemplate(cmd.Template, nil, &value)

	return d.exchange(ctx, wire, nil)
}

// Close releases the transport. Safe to call after a failed operation; the
// connection is released no matter what state the instrument is in.
func (d *Driver) Close() error {
	errFactory := errors.New()

	if err := d.tr.Close(); err != nil {
		return errFactory.Wrap(ErrCloseFailed, err)
	}

	return nil
}

// exchange performs one wire exchange with bounded retry. Garbled replies
// are retried like transport failures: re-issuing the query is the only
// recovery either way.
func (d *Driver) exchange(ctx context.Context, wire string, handle func(reply string) error) error {
	errFactory := errors.New()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = defaultInitialInterval
	policy.MaxInterval = defaultMaxInterval

	var b backoff.BackOff = backoff.WithMaxRetries(policy, d.maxRetries)
	b = backoff.WithContext(b, ctx)

	op := func() error {
		reply, err := d.tr.Exchange(ctx, wire)
		if err != nil {
			return err
		}
		if handle != nil {
			return handle(reply)
		}
		return nil
	}

	var err error
	if d.notify != nil {
		err = backoff.RetryNotify(op, b, d.notify)
	} else {
		err = backoff.Retry(op, b)
	}
	if err != nil {
		return errFactory.Wrap(ErrCommunication, err)
	}

	return nil
}

func (d *Driver) parseReply(op descriptor.Operation, reply string) (float64, error) {
	errFactory := errors.New()

	payload := strings.TrimSpace(reply)
	if re, ok := d.replies[op]; ok {
		m := re.FindStringSubmatch(reply)
		if m == nil || len(m) < 2 {
			return 0, errFactory.WithData(ErrReplyParse, reply)
		}
		payload = m[1]
	}

	value, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return 0, errFactory.WithData(ErrReplyParse, payload)
	}

	return value, nil
}

func expandTemplate(template string, channel *int, value *string) string {
	out := template
	if channel != nil {
		out = strings.ReplaceAll(out, "{channel}", strconv.Itoa(*channel))
	}
	if value != nil {
		out = strings.ReplaceAll(out, "{value}", *value)
	}
	return out
}
