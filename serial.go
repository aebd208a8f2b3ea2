package serial

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by ReadEvent once the port has been closed.
var ErrClosed = errors.New("serial: port closed")

// DefaultPollInterval bounds how long a read waits before the receiver is ticked again.
const DefaultPollInterval = 50 * time.Millisecond

// Port reads command lines from a Linux serial device.
// Only one goroutine may read from a Port; Close and WriteLine may be called from any goroutine.
type Port struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd

	rx    *LineReceiver
	clock Clock
	log   zerolog.Logger

	readBuf []byte
	pending []byte // unconsumed tail of the last read
	readAt  time.Duration
}

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device   string
	BaudRate int // zero selects 115200

	// LineTimeout is the inter-byte silence after which a partial line is dropped.
	// Zero selects DefaultLineTimeout.
	LineTimeout time.Duration
	// PollInterval is the longest a read blocks without ticking the receiver.
	// Zero selects DefaultPollInterval.
	PollInterval time.Duration
	// ReportDiscards surfaces timed-out partial lines as EventDiscarded.
	ReportDiscards bool

	Logger *zerolog.Logger // nil disables logging
	Clock  Clock           // nil uses a monotonic clock started at Open
}

// Open opens a serial port using the provided Config and returns a Port.
// The port is configured for raw, low-latency, non-buffered operation.
func Open(cfg Config) (*Port, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	baud, ok := baudToUnix(cfg.BaudRate)
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", cfg.BaudRate)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.LineTimeout <= 0 {
		cfg.LineTimeout = DefaultLineTimeout
	}

	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("device", cfg.Device).Logger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}
	var opts []ReceiverOption
	if cfg.ReportDiscards {
		opts = append(opts, WithDiscardEvents())
	}

	RegisterMetrics()
	logger.Debug().
		Int("baud", cfg.BaudRate).
		Dur("line_timeout", cfg.LineTimeout).
		Msg("serial port opened")

	return &Port{
		fd:      fd,
		file:    os.NewFile(uintptr(fd), cfg.Device),
		done:    make(chan struct{}),
		config:  cfg,
		pipeR:   pipeFds[0],
		pipeW:   pipeFds[1],
		rx:      NewLineReceiver(cfg.LineTimeout, opts...),
		clock:   clock,
		log:     logger,
		readBuf: make([]byte, 4096),
	}, nil
}

// WriteLine writes a line (with specified newline) to the serial port.
func (p *Port) WriteLine(line string, newline string) error {
	_, err := p.file.WriteString(line + newline)
	return err
}

// ReadEvent blocks until the next command, overflow or (if enabled) discard event.
// Partial lines are dropped after LineTimeout of silence even when no bytes arrive.
func (p *Port) ReadEvent() (Event, error) {
	timeoutMs := int(p.config.PollInterval / time.Millisecond)
	if timeoutMs < 1 {
		timeoutMs = 1
	}
	for {
		// Drain bytes left from the previous read first.
		for len(p.pending) > 0 {
			b := p.pending[0]
			p.pending = p.pending[1:]
			if ev, ok := p.rx.Feed(b, p.readAt); ok {
				p.observe(ev)
				return ev, nil
			}
		}

		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: unix.POLLIN},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, timeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return Event{}, fmt.Errorf("poll: %w", err)
		}
		// Check killability
		select {
		case <-p.done:
			return Event{}, ErrClosed
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(p.pipeR, b[:])
			return Event{}, ErrClosed
		}

		now := p.clock.Now()
		hadPartial := p.rx.Len()
		if ev, ok := p.rx.Tick(now); ok {
			p.observe(ev)
			return ev, nil
		}
		if hadPartial > 0 && !p.rx.Collecting() {
			p.recordTimeout(hadPartial)
		}

		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			n, err := p.file.Read(p.readBuf)
			if err != nil {
				return Event{}, fmt.Errorf("read: %w", err)
			}
			recordBytes(p.config.Device, n)
			p.pending = p.readBuf[:n]
			p.readAt = now
		}
	}
}

// ReadEventsLoop continuously reads events from the serial port and invokes onEvent for each.
// If an error occurs, onError is called and the loop exits. Close ends the loop without an error.
func (p *Port) ReadEventsLoop(onEvent func(Event), onError func(error)) {
	for {
		ev, err := p.ReadEvent()
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				p.log.Error().Err(err).Msg("serial read failed")
				onError(err)
			}
			return
		}
		onEvent(ev)
	}
}

// Close closes the serial port and unblocks any ReadEvent/ReadEventsLoop calls.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		if p.pipeW > 0 {
			unix.Write(p.pipeW, []byte{1})
		}
		if p.file != nil {
			// Closing the file also closes fd.
			err = p.file.Close()
		}
		if p.pipeR > 0 {
			unix.Close(p.pipeR)
		}
		if p.pipeW > 0 {
			unix.Close(p.pipeW)
		}
	})
	return err
}

func (p *Port) observe(ev Event) {
	recordEvent(p.config.Device, ev.Kind)
	switch ev.Kind {
	case EventCommand:
		p.log.Debug().Str("text", ev.Text).Msg("command received")
	case EventOverflow:
		p.log.Warn().Int("limit", MaxLineLength).Msg("line too long, dropped")
	case EventDiscarded:
		p.recordTimeout(len(ev.Text))
	}
}

func (p *Port) recordTimeout(n int) {
	recordTimeout(p.config.Device)
	p.log.Debug().
		Int("bytes", n).
		Dur("line_timeout", p.rx.Timeout()).
		Msg("stale partial line dropped")
}

func baudToUnix(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 921600:
		return unix.B921600, true
	default:
		return 0, false
	}
}
