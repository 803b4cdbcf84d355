package plots

import (
	"math"

	"plotbazaar.io/internal/sim/market/model"
)

type cell struct{ X, Z int64 }

// spatialHash buckets plots on the horizontal plane. With a cell as wide as a
// plot diameter every containment or overlap candidate sits in the 3x3 block
// around the query point.
type spatialHash struct {
	size  float64
	cells map[cell][]model.PlotID
}

func newSpatialHash(size float64) *spatialHash {
	if size <= 0 {
		size = 1
	}
	return &spatialHash{size: size, cells: map[cell][]model.PlotID{}}
}

func (h *spatialHash) key(p model.Vec3) cell {
	return cell{X: int64(math.Floor(p.X / h.size)), Z: int64(math.Floor(p.Z / h.size))}
}

func (h *spatialHash) insert(id model.PlotID, p model.Vec3) {
	k := h.key(p)
	h.cells[k] = append(h.cells[k], id)
}

func (h *spatialHash) remove(id model.PlotID, p model.Vec3) {
	k := h.key(p)
	ids := h.cells[k]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h.cells, k)
		return
	}
	h.cells[k] = ids
}

func (h *spatialHash) near(p model.Vec3) []model.PlotID {
	k := h.key(p)
	var out []model.PlotID
	for dx := int64(-1); dx <= 1; dx++ {
		for dz := int64(-1); dz <= 1; dz++ {
			out = append(out, h.cells[cell{X: k.X + dx, Z: k.Z + dz}]...)
		}
	}
	return out
}
