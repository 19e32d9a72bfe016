package overlay

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAsyncReadFile(t *testing.T) {
	o, prefix := testOverlay(t)
	a := o.Async()

	res := <-a.ReadFile(context.Background(), filepath.Join(prefix, "node_modules", "a", "index.js"))
	require.NoError(t, res.Err)
	require.Equal(t, "module.x=1;", string(res.Value))

	res = <-a.ReadFile(context.Background(), filepath.Join(prefix, "node_modules", "a", "missing.js"))
	require.ErrorIs(t, res.Err, syscall.ENOENT)
}

func TestAsyncStatAndReadDir(t *testing.T) {
	o, prefix := testOverlay(t)
	a := o.Async()
	ctx := context.Background()

	stat := <-a.Stat(ctx, filepath.Join(prefix, "node_modules", "a", "index.js"))
	require.NoError(t, stat.Err)
	require.EqualValues(t, 11, stat.Value.Size())

	dir := <-a.ReadDir(ctx, filepath.Join(prefix, "node_modules", "a"))
	require.NoError(t, dir.Err)
	require.Equal(t, []string{"binfile", "index.js", "package.json"}, dir.Value)
}

func TestAsyncDetachDoesNotLeak(t *testing.T) {
	o, prefix := testOverlay(t)
	a := o.Async()

	// Abandon the channel: the completion goroutine must still drain
	// promptly because the channel is buffered, and goleak (TestMain)
	// verifies nothing outlives the test.
	ctx, cancel := context.WithCancel(context.Background())
	_ = a.ReadFile(ctx, filepath.Join(prefix, "node_modules", "a", "index.js"))
	cancel()
	time.Sleep(10 * time.Millisecond)
}

func TestAsyncOpenClosesWhenDetached(t *testing.T) {
	o, prefix := testOverlay(t)
	a := o.Async()

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.OpenFile(ctx, filepath.Join(prefix, "node_modules", "a", "index.js"), os.O_RDONLY, 0)

	// Either the send won the race (close it ourselves) or the
	// goroutine closed the descriptor after cancellation.
	cancel()
	select {
	case res := <-ch:
		if res.Err == nil {
			res.Value.Close()
		}
	case <-time.After(time.Second):
	}
}
