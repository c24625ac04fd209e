package fdt

import "encoding/binary"

// fdtBuilder assembles a minimal, valid FDT v17 blob for tests. Production
// code never builds blobs — only firmware does — so this lives in a _test.go
// file rather than the package proper.
type fdtBuilder struct {
	strings []byte
	strOff  map[string]uint32
	strct   []byte
}

func newFDTBuilder() *fdtBuilder {
	return &fdtBuilder{strOff: make(map[string]uint32)}
}

func (b *fdtBuilder) internString(s string) uint32 {
	if off, ok := b.strOff[s]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = append(b.strings, []byte(s)...)
	b.strings = append(b.strings, 0)
	b.strOff[s] = off
	return off
}

func (b *fdtBuilder) putU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.strct = append(b.strct, tmp[:]...)
}

func (b *fdtBuilder) putAlignedString(s string) {
	b.strct = append(b.strct, []byte(s)...)
	b.strct = append(b.strct, 0)
	for len(b.strct)%4 != 0 {
		b.strct = append(b.strct, 0)
	}
}

func (b *fdtBuilder) beginNode(name string) {
	b.putU32(tokenBeginNode)
	b.putAlignedString(name)
}

func (b *fdtBuilder) endNode() {
	b.putU32(tokenEndNode)
}

func (b *fdtBuilder) prop(name string, value []byte) {
	b.putU32(tokenProp)
	b.putU32(uint32(len(value)))
	b.putU32(b.internString(name))
	b.strct = append(b.strct, value...)
	for len(b.strct)%4 != 0 {
		b.strct = append(b.strct, 0)
	}
}

func (b *fdtBuilder) propU32(name string, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.prop(name, tmp[:])
}

func (b *fdtBuilder) propString(name, s string) {
	b.prop(name, append([]byte(s), 0))
}

func (b *fdtBuilder) build() []byte {
	b.putU32(tokenEnd)

	const headerSize = headerWords * 4
	memRsvmap := make([]byte, 16) // one terminating (0,0) entry
	offMemRsvmap := uint32(headerSize)
	offStruct := offMemRsvmap + uint32(len(memRsvmap))
	offStrings := offStruct + uint32(len(b.strct))
	totalSize := offStrings + uint32(len(b.strings))

	out := make([]byte, totalSize)
	be := binary.BigEndian
	be.PutUint32(out[0:4], magic)
	be.PutUint32(out[4:8], totalSize)
	be.PutUint32(out[8:12], offStruct)
	be.PutUint32(out[12:16], offStrings)
	be.PutUint32(out[16:20], offMemRsvmap)
	be.PutUint32(out[20:24], 17) // version
	be.PutUint32(out[24:28], 16) // last_comp_version
	be.PutUint32(out[28:32], 0)  // boot_cpuid_phys
	be.PutUint32(out[32:36], uint32(len(b.strings)))
	be.PutUint32(out[36:40], uint32(len(b.strct)))

	copy(out[offMemRsvmap:], memRsvmap)
	copy(out[offStruct:], b.strct)
	copy(out[offStrings:], b.strings)
	return out
}
