package traders

import (
	"fmt"
	"sort"

	"plotbazaar.io/internal/sim/market/model"
)

// Role says which of a trader's containers an id refers to.
type Role uint8

const (
	RoleNone Role = iota
	RoleStand
	RoleStorage
)

func (r Role) String() string {
	switch r {
	case RoleStand:
		return "stand"
	case RoleStorage:
		return "storage"
	default:
		return "none"
	}
}

// Registry indexes every trader by id, owner, stand, storage and host. The
// indexes change together in Add and Remove and nowhere else.
type Registry struct {
	byID      map[model.TraderID]*model.Trader
	byOwner   map[model.PlayerID]*model.Trader
	byStand   map[model.ContainerID]*model.Trader
	byStorage map[model.ContainerID]*model.Trader
	byHost    map[model.ActorID]*model.Trader
}

func NewRegistry() *Registry {
	return &Registry{
		byID:      map[model.TraderID]*model.Trader{},
		byOwner:   map[model.PlayerID]*model.Trader{},
		byStand:   map[model.ContainerID]*model.Trader{},
		byStorage: map[model.ContainerID]*model.Trader{},
		byHost:    map[model.ActorID]*model.Trader{},
	}
}

func (r *Registry) Add(t *model.Trader) error {
	if t == nil || t.ID == "" || t.Owner == "" || t.Stand == "" || t.Storage == "" || t.Host == "" {
		return model.Validation(model.Internal, "trader is missing an identity")
	}
	if t.Stand == t.Storage {
		return model.Validation(model.Internal, "stand and storage must differ")
	}
	if _, ok := r.byOwner[t.Owner]; ok {
		return model.Validation(model.AlreadyOwnsTrader, "")
	}
	if _, ok := r.byID[t.ID]; ok {
		return model.Validation(model.Internal, fmt.Sprintf("trader %s already registered", t.ID))
	}
	if r.tracked(t.Stand) || r.tracked(t.Storage) {
		return model.Validation(model.Internal, "container already belongs to a trader")
	}
	if _, ok := r.byHost[t.Host]; ok {
		return model.Validation(model.Internal, "host already belongs to a trader")
	}
	r.byID[t.ID] = t
	r.byOwner[t.Owner] = t
	r.byStand[t.Stand] = t
	r.byStorage[t.Storage] = t
	r.byHost[t.Host] = t
	return nil
}

func (r *Registry) Remove(id model.TraderID) (*model.Trader, bool) {
	t, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byOwner, t.Owner)
	delete(r.byStand, t.Stand)
	delete(r.byStorage, t.Storage)
	delete(r.byHost, t.Host)
	return t, true
}

func (r *Registry) tracked(c model.ContainerID) bool {
	_, a := r.byStand[c]
	_, b := r.byStorage[c]
	return a || b
}

// Resolve maps a container back to its trader in constant time.
func (r *Registry) Resolve(c model.ContainerID) (*model.Trader, Role) {
	if t, ok := r.byStand[c]; ok {
		return t, RoleStand
	}
	if t, ok := r.byStorage[c]; ok {
		return t, RoleStorage
	}
	return nil, RoleNone
}

func (r *Registry) Get(id model.TraderID) (*model.Trader, bool) {
	t, ok := r.byID[id]
	return t, ok
}

func (r *Registry) ByOwner(p model.PlayerID) (*model.Trader, bool) {
	t, ok := r.byOwner[p]
	return t, ok
}

func (r *Registry) ByHost(a model.ActorID) (*model.Trader, bool) {
	t, ok := r.byHost[a]
	return t, ok
}

func (r *Registry) Len() int { return len(r.byID) }

// All returns traders ordered by id.
func (r *Registry) All() []*model.Trader {
	out := make([]*model.Trader, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check verifies that every index agrees with byID.
func (r *Registry) Check() error {
	n := len(r.byID)
	if len(r.byOwner) != n || len(r.byStand) != n || len(r.byStorage) != n || len(r.byHost) != n {
		return fmt.Errorf("index sizes differ: id=%d owner=%d stand=%d storage=%d host=%d",
			n, len(r.byOwner), len(r.byStand), len(r.byStorage), len(r.byHost))
	}
	for id, t := range r.byID {
		if r.byOwner[t.Owner] != t || r.byStand[t.Stand] != t || r.byStorage[t.Storage] != t || r.byHost[t.Host] != t {
			return fmt.Errorf("trader %s is not indexed consistently", id)
		}
	}
	return nil
}
