package plots

import (
	"errors"
	"math/rand"
	"testing"

	"plotbazaar.io/internal/sim/market/model"
)

type recordingPlacer struct {
	spawned   int
	despawned int
	aligned   int
}

func (r *recordingPlacer) SpawnGhost(*model.Plot) model.ActorID {
	r.spawned++
	return model.NewActorID()
}
func (r *recordingPlacer) DespawnGhost(model.ActorID) { r.despawned++ }
func (r *recordingPlacer) Align(*model.Plot)          { r.aligned++ }

func newService(t *testing.T) (*Service, *recordingPlacer) {
	t.Helper()
	pl := &recordingPlacer{}
	return NewService(NewRegistry(2.3), pl), pl
}

func TestCreateRejectsPointInsidePlot(t *testing.T) {
	s, _ := newService(t)
	if _, err := s.Create(model.Vec3{X: 0, Z: 0}, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Create(model.Vec3{X: 1, Z: 0}, false)
	if !errors.Is(err, model.ErrAlreadyOccupied) {
		t.Fatalf("expected AlreadyOccupied, got %v", err)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	s, _ := newService(t)
	if _, err := s.Create(model.Vec3{}, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Outside the first circle but closer than one diameter.
	_, err := s.Create(model.Vec3{X: 3}, false)
	if !errors.Is(err, model.ErrWouldOverlap) {
		t.Fatalf("expected WouldOverlap, got %v", err)
	}
	if _, err := s.Create(model.Vec3{X: 5}, false); err != nil {
		t.Fatalf("create at one diameter: %v", err)
	}
}

func TestForceCreateReplacesEmptyContainingPlot(t *testing.T) {
	s, pl := newService(t)
	a, _ := s.Create(model.Vec3{}, false)
	if _, err := s.Create(model.Vec3{X: 10}, false); err != nil {
		t.Fatalf("third plot: %v", err)
	}
	p, err := s.Create(model.Vec3{X: 1}, true)
	if err != nil {
		t.Fatalf("force create: %v", err)
	}
	if _, ok := s.Registry().Get(a.ID); ok {
		t.Fatalf("replaced plot still registered")
	}
	if p.Pos != (model.Vec3{X: 1}) || s.Registry().Len() != 2 {
		t.Fatalf("plot=%+v len=%d", p.Pos, s.Registry().Len())
	}
	if pl.despawned != 1 {
		t.Fatalf("ghost of replaced plot not despawned")
	}
}

func TestForceCreateNeverBypassesOverlap(t *testing.T) {
	s, _ := newService(t)
	s.Create(model.Vec3{}, false)
	s.Create(model.Vec3{X: 5}, false)
	// Inside the first plot and within one diameter of the second.
	_, err := s.Create(model.Vec3{X: 1}, true)
	if !errors.Is(err, model.ErrWouldOverlap) {
		t.Fatalf("expected WouldOverlap, got %v", err)
	}
	if s.Registry().Len() != 2 {
		t.Fatalf("failed create must not remove plots")
	}
}

func TestForceCreateRefusesOccupiedPlot(t *testing.T) {
	s, _ := newService(t)
	a, _ := s.Create(model.Vec3{}, false)
	if err := s.Attach(a.ID, "trader_1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := s.Create(model.Vec3{X: 0.5}, true); !errors.Is(err, model.ErrNotEmpty) {
		t.Fatalf("expected NotEmpty, got %v", err)
	}
}

func TestRestoreComesBackUnattached(t *testing.T) {
	s, pl := newService(t)
	p, err := s.Restore(model.Plot{ID: "plot_a", Pos: model.Vec3{X: 4}, Radius: 9, Rotation: 5, TraderID: "t_gone"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if p.Occupied() || p.Radius != 2.3 || p.Rotation != 1 {
		t.Fatalf("restored plot=%+v", p)
	}
	if pl.spawned != 1 || pl.aligned != 1 {
		t.Fatalf("ghost not spawned for restored plot")
	}
	if _, err := s.Restore(model.Plot{ID: "plot_a", Pos: model.Vec3{X: 40}}); !errors.Is(err, model.ErrAlreadyOccupied) {
		t.Fatalf("duplicate id: %v", err)
	}
}

func TestMoveExcludesSelf(t *testing.T) {
	s, pl := newService(t)
	a, _ := s.Create(model.Vec3{}, false)
	s.Create(model.Vec3{X: 6}, false)
	if err := s.Move(a.ID, model.Vec3{X: 1}); err != nil {
		t.Fatalf("small move: %v", err)
	}
	if err := s.Move(a.ID, model.Vec3{X: 3}); !errors.Is(err, model.ErrWouldOverlap) {
		t.Fatalf("expected WouldOverlap, got %v", err)
	}
	if a.Pos.X != 1 {
		t.Fatalf("rejected move changed position: %+v", a.Pos)
	}
	if pl.aligned < 3 {
		t.Fatalf("move did not realign")
	}
	if err := s.Move("missing", model.Vec3{}); !errors.Is(err, model.ErrUnknownPlot) {
		t.Fatalf("expected UnknownPlot, got %v", err)
	}
}

func TestRotateCycles(t *testing.T) {
	s, _ := newService(t)
	a, _ := s.Create(model.Vec3{}, false)
	want := []int{90, 180, 270, 0}
	for _, deg := range want {
		r, err := s.Rotate(a.ID)
		if err != nil || r.Degrees() != deg {
			t.Fatalf("rotate=%d,%v want %d", r.Degrees(), err, deg)
		}
	}
}

func TestAttachDetachKeepsOccupancyExclusive(t *testing.T) {
	s, _ := newService(t)
	a, _ := s.Create(model.Vec3{}, false)
	if a.Ghost == "" || a.Occupied() {
		t.Fatalf("new plot must show its ghost")
	}
	s.Attach(a.ID, "trader_1")
	if a.Ghost != "" || !a.Occupied() {
		t.Fatalf("attached plot=%+v", a)
	}
	if err := s.Attach(a.ID, "trader_2"); !errors.Is(err, model.ErrAlreadyOccupied) {
		t.Fatalf("second attach: %v", err)
	}
	s.Detach(a.ID)
	if a.Ghost == "" || a.Occupied() {
		t.Fatalf("detached plot=%+v", a)
	}
	if err := s.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestRandomPlacementsNeverOverlap(t *testing.T) {
	s, _ := newService(t)
	rng := rand.New(rand.NewSource(7))
	var ids []model.PlotID
	for i := 0; i < 400; i++ {
		pos := model.Vec3{X: rng.Float64()*60 - 30, Z: rng.Float64()*60 - 30}
		switch {
		case len(ids) > 0 && i%3 == 0:
			_ = s.Move(ids[rng.Intn(len(ids))], pos)
		default:
			if p, err := s.Create(pos, i%5 == 0); err == nil {
				ids = append(ids, p.ID)
			}
		}
	}
	all := s.Registry().All()
	if len(all) < 5 {
		t.Fatalf("too few plots placed: %d", len(all))
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if d := all[i].Pos.Dist(all[j].Pos); d < 2*2.3 {
				t.Fatalf("plots %s and %s are %.2f apart", all[i].ID, all[j].ID, d)
			}
		}
	}
}

func TestAnchorsFollowRotation(t *testing.T) {
	p := &model.Plot{Pos: model.Vec3{X: 10, Z: 10}, TraderID: "t"}
	a := AnchorsFor(p)
	if a.Stand != (model.Vec3{X: 10, Z: 11.25}) || a.Storage != (model.Vec3{X: 10, Z: 9.25}) {
		t.Fatalf("anchors=%+v", a)
	}
	p.Rotation = 1
	a = AnchorsFor(p)
	if a.Stand != (model.Vec3{X: 11.25, Z: 10}) {
		t.Fatalf("rotated stand=%+v", a.Stand)
	}
}
