package kernel

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nyxkernel/nyx/internal/klog"
)

// minimalFDTBlob builds just enough of a valid FDT v17 blob — a root node
// with one /memory child describing a single 16 MiB range — to exercise
// Kickstart end to end. Production code never builds blobs; this mirrors
// internal/fdt's own test-only builder.
func minimalFDTBlob(t *testing.T) []byte {
	t.Helper()
	const (
		tokenBeginNode = 0x00000001
		tokenEndNode   = 0x00000002
		tokenProp      = 0x00000003
		tokenEnd       = 0x00000009
	)
	be := binary.BigEndian
	var strct, strings []byte
	putU32 := func(v uint32) {
		var b [4]byte
		be.PutUint32(b[:], v)
		strct = append(strct, b[:]...)
	}
	putStr := func(s string) {
		strct = append(strct, []byte(s)...)
		strct = append(strct, 0)
		for len(strct)%4 != 0 {
			strct = append(strct, 0)
		}
	}
	internString := func(s string) uint32 {
		off := uint32(len(strings))
		strings = append(strings, []byte(s)...)
		strings = append(strings, 0)
		return off
	}
	prop := func(name string, val []byte) {
		putU32(tokenProp)
		putU32(uint32(len(val)))
		putU32(internString(name))
		strct = append(strct, val...)
		for len(strct)%4 != 0 {
			strct = append(strct, 0)
		}
	}

	putU32(tokenBeginNode)
	putStr("") // root node name is empty
	putU32(tokenBeginNode)
	putStr("memory")
	var reg [12]byte // #address-cells=2, #size-cells=1: addr=0, size=16MiB
	be.PutUint64(reg[0:8], 0)
	be.PutUint32(reg[8:12], 16*1024*1024)
	prop("reg", reg[:])
	putU32(tokenEndNode)
	putU32(tokenEndNode)
	putU32(tokenEnd)

	const headerWords = 10
	const headerSize = headerWords * 4
	memRsvmap := make([]byte, 16)
	offMemRsvmap := uint32(headerSize)
	offStruct := offMemRsvmap + uint32(len(memRsvmap))
	offStrings := offStruct + uint32(len(strct))
	totalSize := offStrings + uint32(len(strings))

	out := make([]byte, totalSize)
	be.PutUint32(out[0:4], 0xd00dfeed)
	be.PutUint32(out[4:8], totalSize)
	be.PutUint32(out[8:12], offStruct)
	be.PutUint32(out[12:16], offStrings)
	be.PutUint32(out[16:20], offMemRsvmap)
	be.PutUint32(out[20:24], 17)
	be.PutUint32(out[24:28], 16)
	be.PutUint32(out[28:32], 0)
	be.PutUint32(out[32:36], uint32(len(strings)))
	be.PutUint32(out[36:40], uint32(len(strct)))
	copy(out[offMemRsvmap:], memRsvmap)
	copy(out[offStruct:], strct)
	copy(out[offStrings:], strings)
	return out
}

func TestKickstartWiresEveryComponent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := Kickstart(ctx, minimalFDTBlob(t), 2, klog.Warn)
	require.NoError(t, err)
	require.Equal(t, 2, k.NumCores())
	require.NotZero(t, k.Pool.FreeBytes(), "frame pool should have free memory from the /memory node")

	time.Sleep(10 * time.Millisecond)
	require.True(t, k.Cores.Started(1), "secondary core 1 should be started by Kickstart")
}

func TestKickstartRejectsZeroCores(t *testing.T) {
	ctx := context.Background()
	_, err := Kickstart(ctx, minimalFDTBlob(t), 0, klog.Error)
	require.Error(t, err)
}
