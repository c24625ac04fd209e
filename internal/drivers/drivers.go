// Package drivers defines the narrow contracts the core kernel expects from
// board drivers (§6): a console, an interrupt controller, and the timer
// contract already declared by internal/timemgt. internal/drivermgr looks
// drivers up from the FDT and hands them to the component that owns their
// contract; nothing in this package talks to real hardware.
package drivers

import "github.com/nyxkernel/nyx/internal/timemgt"

// Console is the minimal byte-oriented console contract: one outgoing byte
// stream and one incoming byte stream, matching the teacher's terminal MMIO
// device split into TERM_IN/TERM_KEY_IN read paths and a write path.
type Console interface {
	WriteByte(b byte) error
	ReadByte() (b byte, ok bool)
}

// InterruptController abstracts the board's IRQ routing hardware (a PIC, an
// IOAPIC, a GIC distributor): enabling, disabling, and acknowledging lines
// independently of which dispatcher ends up handling them.
type InterruptController interface {
	Enable(line int) error
	Disable(line int) error
	Acknowledge(line int) error
}

// Timer is a re-export of timemgt.Descriptor so driver packages implementing
// it don't need to import internal/timemgt directly for the type name.
type Timer = timemgt.Descriptor
