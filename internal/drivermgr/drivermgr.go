// Package drivermgr implements the driver registration mechanism of §4.D:
// a linker-collected driver table (realized here as a package-level registry
// that Register appends to, the Go analogue of the `utk_driver_tbl` linker
// section) and the depth-first FDT walk that
// attaches the first matching driver to each compatible node.
package drivermgr

import (
	"fmt"
	"sync"

	"github.com/nyxkernel/nyx/internal/fdt"
	"github.com/nyxkernel/nyx/internal/klog"
)

// AttachStatus is the outcome of a driver's attach callback.
type AttachStatus int

const (
	AttachOK AttachStatus = iota
	AttachFailed
)

// Record mirrors the §3 driver-record data model.
type Record struct {
	Name        string
	Description string
	Compatible  string
	Version     string
	Critical    bool
	Attach      func(node *fdt.Node) AttachStatus
}

var (
	registryMu sync.Mutex
	registry   []*Record
)

// Register appends rec to the global driver table, analogous to a
// linker-section entry appearing at link time. No driver package in this
// repository registers itself; the headless drivers only expose their records
// through Record methods.
func Register(rec *Record) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, rec)
}

// Manager runs the driver-attach walk and logs non-critical attach failures.
// Device data lives on the fdt.Node itself and is looked up through the
// tree's phandle index (see SetDeviceData and GetDeviceData).
type Manager struct {
	logger *klog.Logger
}

// New constructs a driver manager that logs through logger.
func New(logger *klog.Logger) *Manager {
	return &Manager{logger: logger}
}

// AttachAll performs the depth-first walk of §4.D: for every node with a
// compatible property and a status of absent or "okay", the first
// registered driver whose Compatible string matches is invoked. A critical
// driver's attach failure panics the boot sequence; a non-critical failure
// is logged and the walk continues.
func (m *Manager) AttachAll(tree *fdt.Tree) {
	registryMu.Lock()
	snapshot := make([]*Record, len(registry))
	copy(snapshot, registry)
	registryMu.Unlock()

	fdt.Walk(tree.Root, func(n *fdt.Node) {
		if n.Status() != "okay" {
			return
		}
		compat, ok := n.Compatible()
		if !ok {
			return
		}
		for _, rec := range snapshot {
			if rec.Compatible != compat {
				continue
			}
			status := rec.Attach(n)
			if status == AttachFailed {
				msg := fmt.Sprintf("driver %q failed to attach to node %q", rec.Name, n.Name)
				if rec.Critical {
					panic("drivermgr: critical " + msg)
				}
				if m.logger != nil {
					m.logger.Warnf("drivermgr", "%s", msg)
				}
			}
			return
		}
	})
}

// SetDeviceData stores an opaque pointer on node for later lookup via
// GetDeviceData, per the §4.D contract.
func SetDeviceData(node *fdt.Node, ptr any) {
	node.DeviceData = ptr
}

// GetDeviceData retrieves the opaque pointer previously attached to the node
// identified by phandle.
func GetDeviceData(tree *fdt.Tree, phandle uint32) (any, bool) {
	n, ok := tree.ByPhandle[phandle]
	if !ok {
		return nil, false
	}
	return n.DeviceData, n.DeviceData != nil
}
