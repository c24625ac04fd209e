// Package headless provides the board-less stand-in drivers used when no
// real hardware backs a console, interrupt controller, or timer — the
// kernel-side analogue of the teacher's `//go:build headless` audio/video
// backends that satisfy a device contract with no real peripheral behind it.
package headless

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/nyxkernel/nyx/internal/drivermgr"
	"github.com/nyxkernel/nyx/internal/fdt"
)

// Console is a headless drivers.Console: writes go to an underlying
// io.Writer (os.Stdout by default), reads come from an in-memory queue fed by
// Feed rather than a real TTY.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	inbuf  bytes.Buffer
}

// NewConsole builds a headless console writing to out; a nil out defaults to
// os.Stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// WriteByte implements drivers.Console.
func (c *Console) WriteByte(b byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.out.Write([]byte{b})
	return err
}

// ReadByte implements drivers.Console, draining bytes previously queued by
// Feed.
func (c *Console) ReadByte() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inbuf.Len() == 0 {
		return 0, false
	}
	b, _ := c.inbuf.ReadByte()
	return b, true
}

// Feed queues bytes as if they had arrived on the (nonexistent) wire, for
// tests and for a future real-input bridge.
func (c *Console) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbuf.Write(p)
}

// ConsoleCompatible is the FDT compatible string internal/drivermgr matches
// against to attach this driver.
const ConsoleCompatible = "nyx,headless-console"

// Record builds the drivermgr.Record that attaches c to whichever FDT node
// declares ConsoleCompatible.
func (c *Console) Record() *drivermgr.Record {
	return &drivermgr.Record{
		Name:        "headless-console",
		Description: "in-memory stand-in console with no backing TTY",
		Compatible:  ConsoleCompatible,
		Version:     "1.0",
		Attach: func(node *fdt.Node) drivermgr.AttachStatus {
			drivermgr.SetDeviceData(node, c)
			return drivermgr.AttachOK
		},
	}
}
