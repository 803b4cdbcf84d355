package containers

import (
	"fmt"
	"sort"

	"plotbazaar.io/internal/sim/market/model"
)

// Move carries amount units (the whole stack when amount <= 0) from one slot
// to another container. toSlot < 0 lets the store pick. It returns the slot
// that received the items.
func (s *Store) Move(from model.ContainerID, fromSlot int, to model.ContainerID, toSlot int, amount int) (int, error) {
	src, err := s.slot(from, fromSlot)
	if err != nil {
		return -1, err
	}
	it := src.Slots[fromSlot]
	if it.Empty() {
		return -1, fmt.Errorf("containers: slot %d of %s is empty", fromSlot, from)
	}
	if amount <= 0 || amount > it.Amount {
		amount = it.Amount
	}
	moving := model.Item{ID: it.ID, Amount: amount}
	if from == to && toSlot == fromSlot {
		return fromSlot, nil
	}
	at, ok := s.resolve(to, toSlot, moving)
	if !ok {
		return -1, fmt.Errorf("containers: no room for %dx %s in %s", amount, it.ID, to)
	}
	if err := s.RemoveAmount(from, it.ID, amount, fromSlot); err != nil {
		return -1, err
	}
	return s.Place(to, at, moving)
}

// Drop removes a stack from the container entirely and returns it.
func (s *Store) Drop(id model.ContainerID, slot int) (model.Item, error) {
	c, err := s.slot(id, slot)
	if err != nil {
		return model.Item{}, err
	}
	it := c.Slots[slot]
	if it.Empty() {
		return model.Item{}, fmt.Errorf("containers: slot %d of %s is empty", slot, id)
	}
	c.Slots[slot] = model.Item{}
	return it, nil
}

// Split moves half of a stack into the first empty slot of the same container.
func (s *Store) Split(id model.ContainerID, slot int) (int, error) {
	c, err := s.slot(id, slot)
	if err != nil {
		return -1, err
	}
	it := c.Slots[slot]
	if it.Empty() || it.Amount < 2 {
		return -1, fmt.Errorf("containers: slot %d of %s cannot be split", slot, id)
	}
	for i := range c.Slots {
		if c.Slots[i].Empty() {
			half := it.Amount / 2
			c.Slots[slot].Amount -= half
			c.Slots[i] = model.Item{ID: it.ID, Amount: half}
			return i, nil
		}
	}
	return -1, fmt.Errorf("containers: %s is full", id)
}

// Sort merges stacks and orders the container by item id.
func (s *Store) Sort(id model.ContainerID) error {
	c, ok := s.boxes[id]
	if !ok {
		return fmt.Errorf("containers: unknown container %s", id)
	}
	totals := map[string]int{}
	for _, it := range c.Slots {
		if !it.Empty() {
			totals[it.ID] += it.Amount
		}
	}
	ids := make([]string, 0, len(totals))
	for k := range totals {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	out := make([]model.Item, len(c.Slots))
	i := 0
	for _, k := range ids {
		left := totals[k]
		for left > 0 && i < len(out) {
			n := min(left, s.stack(k))
			out[i] = model.Item{ID: k, Amount: n}
			left -= n
			i++
		}
	}
	c.Slots = out
	return nil
}

// MoveAll carries every stack that fits from one container to another.
func (s *Store) MoveAll(from, to model.ContainerID) (int, error) {
	src, ok := s.boxes[from]
	if !ok {
		return 0, fmt.Errorf("containers: unknown container %s", from)
	}
	moved := 0
	for i := range src.Slots {
		if src.Slots[i].Empty() {
			continue
		}
		if _, err := s.Move(from, i, to, -1, 0); err == nil {
			moved++
		}
	}
	return moved, nil
}
