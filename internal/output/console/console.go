// Package console renders samples as human-readable lines, the sink used
// when watching an experiment from a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"codeberg.org/okkola/labdaq/internal/sample"
)

type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// New builds a console sink writing to w; nil means stdout.
func New(w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{w: w}
}

func (o *Output) Publish(samples []sample.Sample) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, s := range samples {
		marker := ""
		if !s.Valid {
			marker = "  [invalid]"
		}
		_, err := fmt.Fprintf(o.w, "%s  %-16s ch%-2d  %14.6g %-5s%s\n",
			s.Timestamp.Format(time.RFC3339Nano), s.DeviceID, s.Channel, s.Value, s.Unit, marker)
		if err != nil {
			return err
		}
	}

	return nil
}

func (o *Output) Close() error {
	return nil
}
