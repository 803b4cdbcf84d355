package model

// Plot is a circular claim of land. Exactly one of TraderID and Ghost is set:
// an occupied plot shows its trader, an empty one shows the ghost placeholder.
type Plot struct {
	ID       PlotID
	Pos      Vec3
	Radius   float64
	Rotation Rotation
	TraderID TraderID
	Ghost    ActorID
}

func (p *Plot) Contains(pos Vec3) bool {
	return p.Pos.Dist(pos) <= p.Radius
}

func (p *Plot) Occupied() bool { return p.TraderID != "" }
