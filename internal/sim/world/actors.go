package world

import (
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/plots"
)

// Pose is where a placeholder actor stands and which way it faces.
type Pose struct {
	Plot     model.PlotID
	Pos      model.Vec3
	Rotation model.Rotation
}

// actorBoard is the placement collaborator. It keeps the ghost placeholders
// of empty plots; trader actors are laid out from their plot on demand.
type actorBoard struct {
	ghosts map[model.ActorID]Pose
	aligns uint64
}

func newActorBoard() *actorBoard {
	return &actorBoard{ghosts: map[model.ActorID]Pose{}}
}

func (b *actorBoard) SpawnGhost(p *model.Plot) model.ActorID {
	id := model.NewActorID()
	empty := model.Plot{ID: p.ID, Pos: p.Pos, Radius: p.Radius, Rotation: p.Rotation}
	a := plots.AnchorsFor(&empty)
	b.ghosts[id] = Pose{Plot: p.ID, Pos: a.Host, Rotation: a.Rotation}
	return id
}

func (b *actorBoard) DespawnGhost(id model.ActorID) {
	delete(b.ghosts, id)
}

func (b *actorBoard) Align(p *model.Plot) {
	b.aligns++
	if p.Ghost == "" {
		return
	}
	a := plots.AnchorsFor(p)
	b.ghosts[p.Ghost] = Pose{Plot: p.ID, Pos: a.Host, Rotation: a.Rotation}
}

func (b *actorBoard) ghost(id model.ActorID) (Pose, bool) {
	g, ok := b.ghosts[id]
	return g, ok
}
