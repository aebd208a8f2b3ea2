package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	serial "github.com/luhtfiimanal/go-serial-commands"
)

type recordingReplier struct {
	lines []string
	err   error
}

func (r *recordingReplier) WriteLine(line string, newline string) error {
	r.lines = append(r.lines, line+newline)
	return r.err
}

func TestHandleEvent(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	out := &recordingReplier{}

	handleEvent(out, serial.Event{Kind: serial.EventCommand, Text: "SF 7"}, logger)
	handleEvent(out, serial.Event{Kind: serial.EventOverflow}, logger)
	handleEvent(out, serial.Event{Kind: serial.EventDiscarded, Text: "BW"}, logger)

	require.Equal(t, []string{"OK\r\n", "ERR overflow\r\n"}, out.lines)
	require.Contains(t, logs.String(), `"text":"SF 7"`)
	require.Contains(t, logs.String(), "command too long")
	require.Contains(t, logs.String(), "partial line timed out")
}

func TestHandleEvent_ReplyFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	out := &recordingReplier{err: errors.New("input/output error")}

	handleEvent(out, serial.Event{Kind: serial.EventCommand, Text: "ping"}, zerolog.New(&logs))

	require.Contains(t, logs.String(), "reply failed")
	require.Contains(t, logs.String(), "input/output error")
}

func TestHandleEvent_UnknownKindSendsNothing(t *testing.T) {
	out := &recordingReplier{}

	handleEvent(out, serial.Event{Kind: serial.EventKind(42)}, zerolog.Nop())

	require.Empty(t, out.lines)
}
