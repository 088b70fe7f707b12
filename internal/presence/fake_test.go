package presence

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	name   string
	frames []Frame
	closed bool
	full   bool
}

func newFakeHandle(name string) *fakeHandle { return &fakeHandle{name: name} }

func (f *fakeHandle) Send(b []byte) bool {
	if f.full {
		return false
	}
	var fr Frame
	if err := json.Unmarshal(b, &fr); err != nil {
		panic(err)
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeHandle) Close() { f.closed = true }

func (f *fakeHandle) ofType(name string) []Frame {
	var out []Frame
	for _, fr := range f.frames {
		if fr.Type == name {
			out = append(out, fr)
		}
	}
	return out
}

func nopLog() zerolog.Logger { return zerolog.Nop() }

func mustDecode(t *testing.T, kind, data string) Event {
	t.Helper()
	evt, err := DecodeEvent(kind, json.RawMessage(data))
	require.NoError(t, err)
	return evt
}

func statusOf(t *testing.T, fr Frame) UserStatus {
	t.Helper()
	var st UserStatus
	require.NoError(t, json.Unmarshal(fr.Data, &st))
	return st
}
