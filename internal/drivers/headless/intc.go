package headless

import (
	"sync"

	"github.com/nyxkernel/nyx/internal/drivermgr"
	"github.com/nyxkernel/nyx/internal/fdt"
	"github.com/nyxkernel/nyx/internal/interrupt"
	"github.com/nyxkernel/nyx/internal/kernelerr"
)

// InterruptController is a headless drivers.InterruptController: it tracks
// enabled lines in a set and acknowledges them instantly, since there is
// no real PIC/IOAPIC/GIC latching state that needs clearing.
type InterruptController struct {
	mu      sync.Mutex
	enabled map[int]bool
}

// NewInterruptController builds an empty headless controller.
func NewInterruptController() *InterruptController {
	return &InterruptController{enabled: make(map[int]bool)}
}

// Enable implements drivers.InterruptController.
func (c *InterruptController) Enable(line int) error {
	if line < interrupt.CustomLineMin || line > interrupt.CustomLineMax {
		return kernelerr.New("headless-intc", kernelerr.UnauthorizedInterruptLine)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled[line] = true
	return nil
}

// Disable implements drivers.InterruptController.
func (c *InterruptController) Disable(line int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.enabled, line)
	return nil
}

// Acknowledge implements drivers.InterruptController; a headless board has
// nothing to latch, so this only validates the line is one we enabled.
func (c *InterruptController) Acknowledge(line int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled[line] {
		return kernelerr.New("headless-intc", kernelerr.NoSuchIRQ)
	}
	return nil
}

// IsEnabled reports whether line is currently enabled, for tests.
func (c *InterruptController) IsEnabled(line int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[line]
}

// InterruptControllerCompatible is the FDT compatible string this driver
// attaches to.
const InterruptControllerCompatible = "nyx,headless-intc"

// Record builds the drivermgr.Record for this controller. Interrupt
// controllers are marked critical: boot cannot proceed with no IRQ routing.
func (c *InterruptController) Record() *drivermgr.Record {
	return &drivermgr.Record{
		Name:        "headless-intc",
		Description: "software interrupt-routing stand-in with no real PIC/IOAPIC/GIC",
		Compatible:  InterruptControllerCompatible,
		Version:     "1.0",
		Critical:    true,
		Attach: func(node *fdt.Node) drivermgr.AttachStatus {
			drivermgr.SetDeviceData(node, c)
			return drivermgr.AttachOK
		},
	}
}
