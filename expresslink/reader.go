package expresslink

import (
	"context"
	"fmt"
	"io"
	"time"

	"i4.energy/across/expresslink/at"
)

const readChunkSize = 512

// lineReader accumulates bytes from the transport into terminated lines.
// Bytes received past a terminator are kept for the next call, so a
// multi-line response delivered in one chunk is not lost.
type lineReader struct {
	r        io.Reader
	pending  []byte
	chunk    []byte
	settle   time.Duration
	interval time.Duration
	maxPolls int
}

func newLineReader(r io.Reader, c Config) *lineReader {
	return &lineReader{
		r:        r,
		chunk:    make([]byte, readChunkSize),
		settle:   c.settleDelay,
		interval: c.pollInterval,
		maxPolls: c.maxPolls,
	}
}

// readLine returns the next line with its terminator and padding removed and
// the escape sequences decoded. When settle is set it first waits for a burst
// to accumulate.
//
// If no terminator arrives within maxPolls reads, whatever was accumulated is
// returned together with ErrTimeout. A failing Read ends the call early with
// the partial line and the read error.
func (lr *lineReader) readLine(settle bool) (string, error) {
	if settle {
		sleep(context.Background(), lr.settle)
	}

	for polls := 0; ; polls++ {
		if advance, token, _ := at.Splitter(lr.pending, false); advance > 0 {
			line := decodeLine(token)
			lr.consume(advance)
			return line, nil
		}
		if polls >= lr.maxPolls {
			break
		}

		n, err := lr.r.Read(lr.chunk)
		lr.pending = append(lr.pending, lr.chunk[:n]...)
		if err != nil {
			return lr.drain(), fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			sleep(context.Background(), lr.interval)
		}
	}
	return lr.drain(), ErrTimeout
}

// discard drops buffered input, both locally and, when the transport
// supports it, in the driver.
func (lr *lineReader) discard() error {
	lr.pending = lr.pending[:0]
	if d, ok := lr.r.(InputDiscarder); ok {
		return d.ResetInputBuffer()
	}
	return nil
}

func (lr *lineReader) consume(n int) {
	lr.pending = lr.pending[n:]
	if len(lr.pending) == 0 {
		lr.pending = nil
	}
}

func (lr *lineReader) drain() string {
	_, token, _ := at.Splitter(lr.pending, true)
	line := decodeLine(token)
	lr.pending = nil
	return line
}

func decodeLine(raw []byte) string {
	return at.Unescape(at.TrimLine(raw))
}

// sleep waits for d or until ctx is done. Non-positive durations return
// immediately.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
