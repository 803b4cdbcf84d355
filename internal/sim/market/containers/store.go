// Package containers is an in-process keyed-slot container store. The market
// core reads and writes it by container id and slot index only.
package containers

import (
	"fmt"
	"sort"

	"plotbazaar.io/internal/sim/market/model"
)

type Kind uint8

const (
	KindInventory Kind = iota
	KindStand
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindStand:
		return "stand"
	case KindStorage:
		return "storage"
	default:
		return "inventory"
	}
}

type Container struct {
	ID    model.ContainerID `json:"id"`
	Kind  Kind              `json:"kind"`
	Owner model.PlayerID    `json:"owner,omitempty"`
	Slots []model.Item      `json:"slots"`
}

// StackFunc reports how many units of an item fit in one slot.
type StackFunc func(itemID string) int

type Store struct {
	boxes map[model.ContainerID]*Container
	stack StackFunc
}

func NewStore(stack StackFunc) *Store {
	if stack == nil {
		stack = func(string) int { return 4000 }
	}
	return &Store{boxes: map[model.ContainerID]*Container{}, stack: stack}
}

func (s *Store) Create(id model.ContainerID, kind Kind, owner model.PlayerID, size int) (*Container, error) {
	if id == "" || size <= 0 {
		return nil, fmt.Errorf("containers: bad container %q size %d", id, size)
	}
	if _, ok := s.boxes[id]; ok {
		return nil, fmt.Errorf("containers: %s already exists", id)
	}
	c := &Container{ID: id, Kind: kind, Owner: owner, Slots: make([]model.Item, size)}
	s.boxes[id] = c
	return c, nil
}

func (s *Store) Destroy(id model.ContainerID) { delete(s.boxes, id) }

func (s *Store) Exists(id model.ContainerID) bool {
	_, ok := s.boxes[id]
	return ok
}

// Tracked reports whether id is tagged as a stand or storage.
func (s *Store) Tracked(id model.ContainerID) bool {
	c, ok := s.boxes[id]
	return ok && (c.Kind == KindStand || c.Kind == KindStorage)
}

func (s *Store) Get(id model.ContainerID) (*Container, bool) {
	c, ok := s.boxes[id]
	return c, ok
}

func (s *Store) Size(id model.ContainerID) int {
	if c, ok := s.boxes[id]; ok {
		return len(c.Slots)
	}
	return 0
}

func (s *Store) slot(id model.ContainerID, slot int) (*Container, error) {
	c, ok := s.boxes[id]
	if !ok {
		return nil, fmt.Errorf("containers: unknown container %s", id)
	}
	if slot < 0 || slot >= len(c.Slots) {
		return nil, fmt.Errorf("containers: slot %d out of range for %s", slot, id)
	}
	return c, nil
}

func (s *Store) ItemAt(id model.ContainerID, slot int) (model.Item, bool) {
	c, err := s.slot(id, slot)
	if err != nil || c.Slots[slot].Empty() {
		return model.Item{}, false
	}
	return c.Slots[slot], true
}

func (s *Store) SetItemAt(id model.ContainerID, slot int, it model.Item) error {
	c, err := s.slot(id, slot)
	if err != nil {
		return err
	}
	if it.Empty() {
		it = model.Item{}
	}
	c.Slots[slot] = it
	return nil
}

func (s *Store) ClearSlot(id model.ContainerID, slot int) {
	if c, err := s.slot(id, slot); err == nil {
		c.Slots[slot] = model.Item{}
	}
}

func (s *Store) CountOf(id model.ContainerID, itemID string) int {
	c, ok := s.boxes[id]
	if !ok {
		return 0
	}
	n := 0
	for _, it := range c.Slots {
		if !it.Empty() && it.ID == itemID {
			n += it.Amount
		}
	}
	return n
}

func (s *Store) IsEmpty(id model.ContainerID) bool {
	c, ok := s.boxes[id]
	if !ok {
		return true
	}
	for _, it := range c.Slots {
		if !it.Empty() {
			return false
		}
	}
	return true
}

func (s *Store) capacity(it model.Item) int {
	if it.MaxAmount > 0 {
		return it.MaxAmount
	}
	return s.stack(it.ID)
}

// room is how many units of itemID a slot still accepts.
func (s *Store) room(cur model.Item, itemID string) int {
	if cur.Empty() {
		return s.stack(itemID)
	}
	if cur.ID != itemID {
		return 0
	}
	if r := s.capacity(cur) - cur.Amount; r > 0 {
		return r
	}
	return 0
}

func (s *Store) CanAdd(id model.ContainerID, itemID string, amount int) bool {
	c, ok := s.boxes[id]
	if !ok || amount <= 0 {
		return false
	}
	free := 0
	for _, it := range c.Slots {
		free += s.room(it, itemID)
		if free >= amount {
			return true
		}
	}
	return false
}

// AddAmount tops up matching stacks, then fills empty slots. It changes
// nothing unless the whole amount fits.
func (s *Store) AddAmount(id model.ContainerID, itemID string, amount int) error {
	if !s.CanAdd(id, itemID, amount) {
		return fmt.Errorf("containers: no room for %dx %s in %s", amount, itemID, id)
	}
	c := s.boxes[id]
	for pass := 0; pass < 2 && amount > 0; pass++ {
		for i, it := range c.Slots {
			if amount == 0 {
				break
			}
			if (pass == 0) == it.Empty() {
				continue
			}
			n := min(s.room(it, itemID), amount)
			if n == 0 {
				continue
			}
			if it.Empty() {
				c.Slots[i] = model.Item{ID: itemID, Amount: n}
			} else {
				c.Slots[i].Amount += n
			}
			amount -= n
		}
	}
	return nil
}

// RemoveAmount takes units of itemID from slot, or from any slots when slot
// is negative. It changes nothing unless the whole amount is present.
func (s *Store) RemoveAmount(id model.ContainerID, itemID string, amount int, slot int) error {
	if amount <= 0 {
		return fmt.Errorf("containers: bad amount %d", amount)
	}
	if slot >= 0 {
		c, err := s.slot(id, slot)
		if err != nil {
			return err
		}
		it := c.Slots[slot]
		if it.Empty() || it.ID != itemID || it.Amount < amount {
			return fmt.Errorf("containers: slot %d of %s lacks %dx %s", slot, id, amount, itemID)
		}
		c.Slots[slot].Amount -= amount
		if c.Slots[slot].Amount == 0 {
			c.Slots[slot] = model.Item{}
		}
		return nil
	}
	if s.CountOf(id, itemID) < amount {
		return fmt.Errorf("containers: %s lacks %dx %s", id, amount, itemID)
	}
	c := s.boxes[id]
	for i := range c.Slots {
		if amount == 0 {
			break
		}
		it := c.Slots[i]
		if it.Empty() || it.ID != itemID {
			continue
		}
		n := min(it.Amount, amount)
		c.Slots[i].Amount -= n
		if c.Slots[i].Amount == 0 {
			c.Slots[i] = model.Item{}
		}
		amount -= n
	}
	return nil
}

// resolve picks the slot that would receive it: the given slot, else a
// matching stack with room, else the first empty slot.
func (s *Store) resolve(id model.ContainerID, slot int, it model.Item) (int, bool) {
	c, ok := s.boxes[id]
	if !ok || it.Empty() {
		return -1, false
	}
	if slot >= 0 {
		if slot >= len(c.Slots) || s.room(c.Slots[slot], it.ID) < it.Amount {
			return -1, false
		}
		return slot, true
	}
	for i, cur := range c.Slots {
		if !cur.Empty() && s.room(cur, it.ID) >= it.Amount {
			return i, true
		}
	}
	for i, cur := range c.Slots {
		if cur.Empty() && s.room(cur, it.ID) >= it.Amount {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) CanPlace(id model.ContainerID, slot int, it model.Item) bool {
	_, ok := s.resolve(id, slot, it)
	return ok
}

// Place puts a whole stack in one slot and returns that slot.
func (s *Store) Place(id model.ContainerID, slot int, it model.Item) (int, error) {
	at, ok := s.resolve(id, slot, it)
	if !ok {
		return -1, fmt.Errorf("containers: cannot place %dx %s in %s", it.Amount, it.ID, id)
	}
	c := s.boxes[id]
	if c.Slots[at].Empty() {
		c.Slots[at] = it
	} else {
		c.Slots[at].Amount += it.Amount
	}
	return at, nil
}

// FirstEmpty returns the first empty slot among candidates.
func (s *Store) FirstEmpty(id model.ContainerID, candidates []int) (int, bool) {
	for _, i := range candidates {
		if c, err := s.slot(id, i); err == nil && c.Slots[i].Empty() {
			return i, true
		}
	}
	return -1, false
}

// LockAmounts pins every occupied slot's capacity to its current amount.
func (s *Store) LockAmounts(id model.ContainerID) {
	c, ok := s.boxes[id]
	if !ok {
		return
	}
	for i := range c.Slots {
		if !c.Slots[i].Empty() {
			c.Slots[i].MaxAmount = c.Slots[i].Amount
		}
	}
}

// Export copies every container, ordered by id.
func (s *Store) Export() []Container {
	out := make([]Container, 0, len(s.boxes))
	for _, c := range s.boxes {
		cp := *c
		cp.Slots = append([]model.Item(nil), c.Slots...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Import replaces the store contents.
func (s *Store) Import(boxes []Container) {
	s.boxes = make(map[model.ContainerID]*Container, len(boxes))
	for i := range boxes {
		cp := boxes[i]
		cp.Slots = append([]model.Item(nil), boxes[i].Slots...)
		s.boxes[cp.ID] = &cp
	}
}
