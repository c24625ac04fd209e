package headless

import (
	"os"
	"sync"
	"syscall"

	"github.com/nyxkernel/nyx/internal/kernelerr"
	"golang.org/x/term"
)

// TTYConsole is a Console backed by a real terminal on stdin/stdout, for
// interactive runs of cmd/kernel. It adapts the same raw-mode,
// non-blocking-read loop the teacher's stand-alone terminal host uses, feeding
// bytes into the embedded Console's queue instead of a bespoke MMIO device.
type TTYConsole struct {
	*Console

	fd       int
	oldState *term.State

	once   sync.Once
	stopCh chan struct{}
	done   chan struct{}
}

// NewTTYConsole builds a TTYConsole over stdin/stdout, failing with
// NOT_SUPPORTED if stdin isn't attached to a real terminal (e.g. under a CI
// runner or when piped).
func NewTTYConsole() (*TTYConsole, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, kernelerr.New("headless", kernelerr.NotSupported)
	}
	return &TTYConsole{Console: NewConsole(os.Stdout), fd: fd}, nil
}

// Start puts the terminal into raw mode and begins feeding stdin bytes into
// the console's read queue. Call Stop to restore the terminal.
func (t *TTYConsole) Start() error {
	oldState, err := term.MakeRaw(t.fd)
	if err != nil {
		return err
	}
	t.oldState = oldState
	if err := syscall.SetNonblock(t.fd, true); err != nil {
		_ = term.Restore(t.fd, t.oldState)
		return err
	}

	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		buf := make([]byte, 1)
		for {
			select {
			case <-t.stopCh:
				return
			default:
			}
			n, err := syscall.Read(t.fd, buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' {
					b = '\n'
				}
				t.Feed([]byte{b})
			}
			if err != nil && err != syscall.EAGAIN {
				return
			}
		}
	}()
	return nil
}

// Stop restores the terminal to its state before Start and stops the read
// loop. Safe to call more than once.
func (t *TTYConsole) Stop() {
	t.once.Do(func() {
		if t.stopCh != nil {
			close(t.stopCh)
			<-t.done
		}
		if t.oldState != nil {
			_ = term.Restore(t.fd, t.oldState)
		}
	})
}
