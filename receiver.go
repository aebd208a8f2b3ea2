package serial

import (
	"strings"
	"time"
)

const (
	// MaxLineLength is the largest number of bytes a single command line may hold.
	MaxLineLength = 1024

	// DefaultLineTimeout is the inter-byte silence after which a partial line is dropped.
	DefaultLineTimeout = 2 * time.Second
)

// asciiSpace is the set trimmed from both ends of a completed line.
const asciiSpace = " \t\n\v\f\r"

// EventKind identifies what a LineReceiver produced.
type EventKind int

const (
	EventCommand   EventKind = iota // A complete, trimmed, non-empty line
	EventOverflow                   // A line longer than MaxLineLength was dropped
	EventDiscarded                  // A stale partial line was dropped (opt-in)
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventOverflow:
		return "overflow"
	case EventDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Event is a single outcome of feeding a byte or advancing time.
// Text is set for EventCommand, and for EventDiscarded holds the dropped partial line.
type Event struct {
	Kind EventKind
	Text string
}

// ReceiverOption configures a LineReceiver.
type ReceiverOption func(*LineReceiver)

// WithDiscardEvents makes Tick report timed-out partial lines as EventDiscarded
// instead of dropping them silently.
func WithDiscardEvents() ReceiverOption {
	return func(r *LineReceiver) { r.reportDiscards = true }
}

// LineReceiver reassembles a byte stream into newline-terminated command lines.
//
// It is a pure state machine: Feed and Tick never block and never fail. The
// caller supplies a monotonic clock reading with every call. A LineReceiver is
// not safe for concurrent use.
type LineReceiver struct {
	timeout        time.Duration
	reportDiscards bool

	buf          []byte
	overflow     bool
	lastActivity time.Duration
}

// NewLineReceiver returns an idle receiver. A non-positive timeout selects DefaultLineTimeout.
func NewLineReceiver(timeout time.Duration, opts ...ReceiverOption) *LineReceiver {
	if timeout <= 0 {
		timeout = DefaultLineTimeout
	}
	r := &LineReceiver{
		timeout: timeout,
		buf:     make([]byte, 0, MaxLineLength),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the inter-byte silence threshold.
func (r *LineReceiver) Timeout() time.Duration { return r.timeout }

// Len returns the number of buffered bytes of the current partial line.
func (r *LineReceiver) Len() int { return len(r.buf) }

// Collecting reports whether a partial line is buffered.
func (r *LineReceiver) Collecting() bool { return len(r.buf) > 0 }

// Overflowed reports whether bytes of the current line have been dropped.
func (r *LineReceiver) Overflowed() bool { return r.overflow }

// Tick drops the partial line if nothing arrived for longer than the timeout.
// It must be called before feeding the bytes that arrived at now.
func (r *LineReceiver) Tick(now time.Duration) (Event, bool) {
	if len(r.buf) == 0 || now-r.lastActivity <= r.timeout {
		return Event{}, false
	}
	partial := string(r.buf)
	r.reset()
	if !r.reportDiscards {
		return Event{}, false
	}
	return Event{Kind: EventDiscarded, Text: partial}, true
}

// Feed consumes one byte received at now.
func (r *LineReceiver) Feed(b byte, now time.Duration) (Event, bool) {
	switch b {
	case '\r':
		return Event{}, false
	case '\n':
		return r.terminate()
	}

	if !r.overflow {
		if len(r.buf) < MaxLineLength {
			r.buf = append(r.buf, b)
		} else {
			r.overflow = true
		}
	}
	// Overflowing input still counts as activity.
	r.lastActivity = now
	return Event{}, false
}

// FeedBytes feeds every byte of p at now and appends the resulting events to dst.
func (r *LineReceiver) FeedBytes(dst []Event, p []byte, now time.Duration) []Event {
	for _, b := range p {
		if ev, ok := r.Feed(b, now); ok {
			dst = append(dst, ev)
		}
	}
	return dst
}

func (r *LineReceiver) terminate() (Event, bool) {
	line := string(r.buf)
	overflowed := r.overflow
	r.reset()

	if overflowed {
		return Event{Kind: EventOverflow}, true
	}
	line = strings.Trim(line, asciiSpace)
	if line == "" {
		return Event{}, false
	}
	return Event{Kind: EventCommand, Text: line}, true
}

func (r *LineReceiver) reset() {
	r.buf = r.buf[:0]
	r.overflow = false
	r.lastActivity = 0
}
