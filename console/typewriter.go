package console

import (
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTypewriterClosed is returned by Write after Close.
var ErrTypewriterClosed = errors.New("typewriter closed")

// DefaultTypeDelay returns a per-character delay between 5 and 30ms.
func DefaultTypeDelay() time.Duration {
	return time.Duration(5+rand.Intn(25)) * time.Millisecond
}

// Typewriter is an io.Writer that echoes text one character at a time from
// a background goroutine. Write never blocks on the pacing.
type Typewriter struct {
	out   io.Writer
	delay func() time.Duration

	queue   chan string
	pending sync.WaitGroup
	done    chan struct{}
	// hurry skips the pacing, set while closing.
	hurry atomic.Bool

	mu     sync.Mutex
	closed bool
}

// NewTypewriter starts a typewriter writing to out. A nil delay uses
// DefaultTypeDelay.
func NewTypewriter(out io.Writer, delay func() time.Duration) *Typewriter {
	if delay == nil {
		delay = DefaultTypeDelay
	}
	t := &Typewriter{
		out:   out,
		delay: delay,
		queue: make(chan string, 64),
		done:  make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Typewriter) run() {
	defer close(t.done)
	for s := range t.queue {
		for _, r := range s {
			_, _ = io.WriteString(t.out, string(r))
			if !t.hurry.Load() {
				time.Sleep(t.delay())
			}
		}
		t.pending.Done()
	}
}

// Write queues p for output.
func (t *Typewriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrTypewriterClosed
	}
	t.pending.Add(1)
	t.queue <- string(p)
	return len(p), nil
}

// Flush blocks until everything written so far has been echoed.
func (t *Typewriter) Flush() {
	t.pending.Wait()
}

// Close writes any queued text without pacing and stops the goroutine.
func (t *Typewriter) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.hurry.Store(true)
	close(t.queue)
	t.mu.Unlock()
	<-t.done
	return nil
}
