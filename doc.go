// Package serial turns a noisy serial byte stream into discrete command lines.
//
// The heart of the package is LineReceiver, a small, allocation-bounded state
// machine that reassembles newline-terminated commands one byte at a time. It
// is driven by two inputs, bytes and a monotonic clock, and never blocks:
//
//   - lines are capped at MaxLineLength (1024) bytes; a longer line is dropped
//     whole and reported once as EventOverflow
//   - a partial line that sees no byte for longer than the line timeout
//     (default 2s) is dropped silently, so a host reset or a stalled cable
//     cannot glue garbage onto the next command
//   - '\r' is ignored, blank lines produce nothing, and surrounding whitespace
//     is trimmed from every command
//
// Port wraps a LineReceiver around a Linux serial device using raw termios,
// poll and a self-pipe so readers can be stopped from another goroutine.
//
// This package does **not** support Windows.
//
// Example usage:
//
//	cfg := serial.Config{
//	    Device:      "/dev/ttyUSB0",
//	    BaudRate:    115200,
//	    LineTimeout: 2 * time.Second,
//	}
//	port, err := serial.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	go port.ReadEventsLoop(
//	    func(ev serial.Event) {
//	        switch ev.Kind {
//	        case serial.EventCommand:
//	            fmt.Println("command:", ev.Text)
//	        case serial.EventOverflow:
//	            port.WriteLine("ERR overflow", "\r\n")
//	        }
//	    },
//	    func(err error) {
//	        log.Println("read error:", err)
//	    },
//	)
//
// Without hardware, a LineReceiver can be driven directly:
//
//	rx := serial.NewLineReceiver(2 * time.Second)
//	rx.Tick(now)
//	if ev, ok := rx.Feed(b, now); ok {
//	    dispatch(ev)
//	}
package serial
