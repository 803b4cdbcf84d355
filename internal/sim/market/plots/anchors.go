package plots

import "plotbazaar.io/internal/sim/market/model"

var (
	storageOffset      = model.Vec3{Z: -0.75}
	standOffset        = model.Vec3{Z: 1.25}
	ghostStorageOffset = model.Vec3{Z: -1}
	ghostHostOffset    = model.Vec3{Z: 1.5}
)

// Anchors are where the parts of a plot's occupant stand in the world.
type Anchors struct {
	Host     model.Vec3
	Stand    model.Vec3
	Storage  model.Vec3
	Rotation model.Rotation
}

// AnchorsFor lays out a trader, or the ghost when the plot is empty, around
// the plot centre following its rotation.
func AnchorsFor(p *model.Plot) Anchors {
	if p.Occupied() {
		return Anchors{
			Host:     p.Pos.Add(standOffset.RotateY(p.Rotation)),
			Stand:    p.Pos.Add(standOffset.RotateY(p.Rotation)),
			Storage:  p.Pos.Add(storageOffset.RotateY(p.Rotation)),
			Rotation: p.Rotation,
		}
	}
	return Anchors{
		Host:     p.Pos.Add(ghostHostOffset.RotateY(p.Rotation)),
		Stand:    p.Pos.Add(ghostHostOffset.RotateY(p.Rotation)),
		Storage:  p.Pos.Add(ghostStorageOffset.RotateY(p.Rotation)),
		Rotation: p.Rotation,
	}
}
