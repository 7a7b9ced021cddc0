package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// socketpair returns two connected, blocking AF_UNIX stream fds.
func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestReactorFiresOnReadable(t *testing.T) {
	a, b := socketpair(t)

	r := New(a, EventIn)
	require.NoError(t, r.Init())
	defer r.Close()

	var gotEvent bool
	r.BindSlot(EventIn, func() Verdict {
		gotEvent = true
		buf := make([]byte, 16)
		unix.Read(a, buf)
		return Exit
	})

	_, err := unix.Write(b, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, r.Start())
	require.True(t, gotEvent)
}

func TestReactorBreakLoopStopsWithoutEvent(t *testing.T) {
	a, _ := socketpair(t)

	r := New(a, EventIn)
	require.NoError(t, r.Init())
	defer r.Close()
	r.BindSlot(EventIn, func() Verdict { return Continue })

	done := make(chan error, 1)
	go func() { done <- r.Start() }()

	time.Sleep(10 * time.Millisecond)
	r.BreakLoop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop after BreakLoop")
	}
}

func TestReactorExitsOnPeerHangup(t *testing.T) {
	a, b := socketpair(t)

	r := New(a, EventIn|EventHUp|EventRdHUp|EventErr)
	require.NoError(t, r.Init())
	defer r.Close()
	r.BindSlot(EventIn, func() Verdict { return Continue })

	require.NoError(t, unix.Close(b))

	done := make(chan error, 1)
	go func() { done <- r.Start() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not exit after peer hangup")
	}
}

func TestBindSlotThenRebindSlotReplacesHandler(t *testing.T) {
	a, b := socketpair(t)

	r := New(a, EventIn)
	require.NoError(t, r.Init())
	defer r.Close()

	r.BindSlot(EventIn, func() Verdict { return Continue })
	var rebound bool
	r.RebindSlot(EventIn, func() Verdict {
		rebound = true
		buf := make([]byte, 16)
		unix.Read(a, buf)
		return Exit
	})

	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, r.Start())
	require.True(t, rebound)
}
