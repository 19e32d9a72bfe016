package overlay

import (
	"context"
	"io/fs"
	"os"
)

// Result carries one async completion: a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// Async provides the asynchronous forms of the overlay operations.
// Each call runs the blocking core on its own goroutine and delivers
// the completion on a buffered channel. Abandoning the channel
// detaches the caller; it never cancels the underlying syscall, and
// no per-call state outlives the call.
type Async struct {
	o *Overlay
}

// Async returns the asynchronous facade over the overlay.
func (o *Overlay) Async() *Async {
	return &Async{o: o}
}

// Stat is the async form of Overlay.Stat.
func (a *Async) Stat(ctx context.Context, path string) <-chan Result[fs.FileInfo] {
	return run(ctx, func() (fs.FileInfo, error) { return a.o.Stat(path) })
}

// Lstat is the async form of Overlay.Lstat.
func (a *Async) Lstat(ctx context.Context, path string) <-chan Result[fs.FileInfo] {
	return run(ctx, func() (fs.FileInfo, error) { return a.o.Lstat(path) })
}

// ReadFile is the async form of Overlay.ReadFile.
func (a *Async) ReadFile(ctx context.Context, path string) <-chan Result[[]byte] {
	return run(ctx, func() ([]byte, error) { return a.o.ReadFile(path) })
}

// ReadDir is the async form of Overlay.ReadDir.
func (a *Async) ReadDir(ctx context.Context, path string) <-chan Result[[]string] {
	return run(ctx, func() ([]string, error) { return a.o.ReadDir(path) })
}

// Access is the async form of Overlay.Access.
func (a *Async) Access(ctx context.Context, path string, mode uint32) <-chan Result[struct{}] {
	return run(ctx, func() (struct{}, error) { return struct{}{}, a.o.Access(path, mode) })
}

// OpenFile is the async form of Overlay.OpenFile. If the caller has
// gone away by completion time, the descriptor is closed rather than
// leaked.
func (a *Async) OpenFile(ctx context.Context, path string, flag int, perm fs.FileMode) <-chan Result[*os.File] {
	ch := make(chan Result[*os.File], 1)
	go func() {
		f, err := a.o.OpenFile(path, flag, perm)
		if ctx.Err() != nil {
			if f != nil {
				f.Close()
			}
			return
		}
		ch <- Result[*os.File]{Value: f, Err: err}
	}()
	return ch
}

// Realpath is the async form of Overlay.Realpath.
func (a *Async) Realpath(ctx context.Context, path string) <-chan Result[string] {
	return run(ctx, func() (string, error) { return a.o.Realpath(path) })
}

// run executes op on its own goroutine. The channel is buffered so
// the goroutine never blocks on a detached caller; ctx only governs
// delivery, not the operation itself.
func run[T any](ctx context.Context, op func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := op()
		select {
		case ch <- Result[T]{Value: v, Err: err}:
		case <-ctx.Done():
		}
	}()
	return ch
}
