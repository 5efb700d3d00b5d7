package expresslink

import (
	"io"
	"strings"
	"sync"
)

// TestTransport is an in-memory Transport that answers written commands from
// a script. Reads never block: with nothing queued they return (0, nil), like
// a serial port whose read timeout expired, so the line reader's polling
// budget is exercised for real.
//
// Exported for use in tests.
type TestTransport struct {
	mu       sync.Mutex
	replies  map[string][][]string
	queue    [][]byte
	writes   []string
	reads    int
	discards int
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: make(map[string][][]string),
	}
}

// Reply scripts the answer to the next write of line, given without its
// CR LF terminator (for example "AT+CONF? Endpoint"). Each chunk is handed
// out by a separate Read. Replies for the same line are used in order.
func (t *TestTransport) Reply(line string, chunks ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[line] = append(t.replies[line], chunks)
	return t
}

// SendData queues unsolicited bytes, such as a late event notification.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.queue = append(t.queue, []byte(data))
	}
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	line := strings.TrimSuffix(string(p), "\r\n")
	t.writes = append(t.writes, line)
	if scripted := t.replies[line]; len(scripted) > 0 {
		for _, chunk := range scripted[0] {
			t.queue = append(t.queue, []byte(chunk))
		}
		t.replies[line] = scripted[1:]
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	t.reads++
	if len(t.queue) == 0 {
		return 0, nil
	}
	n := copy(p, t.queue[0])
	if n < len(t.queue[0]) {
		t.queue[0] = t.queue[0][n:]
	} else {
		t.queue = t.queue[1:]
	}
	return n, nil
}

// ResetInputBuffer drops all queued input.
func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discards++
	t.queue = nil
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Writes returns the lines written so far, without terminators.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Reads returns the number of Read calls made so far.
func (t *TestTransport) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// Discards returns how often pending input was dropped.
func (t *TestTransport) Discards() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discards
}
