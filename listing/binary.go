// Package listing renders a finished model.AssemblyModel as a flat
// binary image, a human-readable address/byte/source listing, and a
// symbol cross-reference report.
package listing

import (
	"encoding/binary"
	"sort"

	"github.com/devzendo/transputer-asm/model"
)

// WriteBinary walks m's sourced values in line order and returns a
// flat byte image, honoring m's configured endianness. Where two
// storages cover the same address, the one from the later line wins. The image
// starts at the lowest emitted storage address; gaps left by ORG/ALIGN
// are filled with zero.
func WriteBinary(m *model.AssemblyModel) []byte {
	lowest, ok := m.LowestStorageAddress()
	if !ok {
		return nil
	}
	highest, _ := m.HighestStorageAddress()
	size := int(highest - lowest)
	image := make([]byte, size)

	order := binary.ByteOrder(binary.LittleEndian)
	if !m.LittleEndian() {
		order = binary.BigEndian
	}

	m.ForeachLineSourcedValues(func(_ model.IndexedLine, values []model.SourcedValue) {
		for _, v := range values {
			st, ok := v.(*model.Storage)
			if !ok {
				continue
			}
			writeStorage(image, int(st.Address-lowest), st, order)
		}
	})

	return image
}

func writeStorage(image []byte, offset int, st *model.Storage, order binary.ByteOrder) {
	for i, cell := range st.Data {
		pos := offset + i*st.CellWidth
		if pos < 0 || pos+st.CellWidth > len(image) {
			continue
		}
		switch st.CellWidth {
		case 1:
			image[pos] = byte(cell)
		case 2:
			order.PutUint16(image[pos:pos+2], uint16(cell))
		case 4:
			order.PutUint32(image[pos:pos+4], uint32(cell))
		default:
			buf := make([]byte, 4)
			order.PutUint32(buf, uint32(cell))
			copy(image[pos:pos+st.CellWidth], buf)
		}
	}
}

// addressOrderedStorages returns every Storage in m, sorted by
// address, for callers that need a flat ordered walk rather than the
// per-line grouping ForeachLineSourcedValues provides.
func addressOrderedStorages(m *model.AssemblyModel) []*model.Storage {
	var storages []*model.Storage
	m.ForeachLineSourcedValues(func(_ model.IndexedLine, values []model.SourcedValue) {
		for _, v := range values {
			if st, ok := v.(*model.Storage); ok {
				storages = append(storages, st)
			}
		}
	})
	sort.Slice(storages, func(i, j int) bool { return storages[i].Address < storages[j].Address })
	return storages
}
