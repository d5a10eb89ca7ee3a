package parking

import "github.com/google/btree"

const poolDegree = 16

// slotLess orders free slots nearest first. Equal distances go to the
// higher category priority, then to the lower id so the order is total.
func slotLess(a, b *Slot) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if pa, pb := a.Category.priority(), b.Category.priority(); pa != pb {
		return pa > pb
	}
	return a.ID < b.ID
}

// AvailablePool is the ordered set of free slots. Lookups walk it in
// ascending order without removing the slots they pass over.
type AvailablePool struct {
	tree *btree.BTreeG[*Slot]
}

func NewAvailablePool() *AvailablePool {
	return &AvailablePool{tree: btree.NewG(poolDegree, slotLess)}
}

func (p *AvailablePool) Add(slot *Slot) {
	p.tree.ReplaceOrInsert(slot)
}

func (p *AvailablePool) Remove(slot *Slot) bool {
	_, ok := p.tree.Delete(slot)
	return ok
}

func (p *AvailablePool) Contains(slot *Slot) bool {
	return p.tree.Has(slot)
}

func (p *AvailablePool) Len() int {
	return p.tree.Len()
}

// Nearest returns the closest slot satisfying match, or nil.
func (p *AvailablePool) Nearest(match func(*Slot) bool) *Slot {
	var found *Slot
	p.tree.Ascend(func(slot *Slot) bool {
		if match(slot) {
			found = slot
			return false
		}
		return true
	})
	return found
}

// NearestFor returns the closest slot the vehicle may take.
func (p *AvailablePool) NearestFor(vehicle *Vehicle) *Slot {
	return p.Nearest(vehicle.fits)
}

// CloserThan returns the closest slot the vehicle may take whose distance
// is strictly below limit.
func (p *AvailablePool) CloserThan(vehicle *Vehicle, limit int) *Slot {
	var found *Slot
	p.tree.Ascend(func(slot *Slot) bool {
		if slot.Distance >= limit {
			return false
		}
		if vehicle.fits(slot) {
			found = slot
			return false
		}
		return true
	})
	return found
}

// First returns up to n slots in pool order.
func (p *AvailablePool) First(n int) []*Slot {
	if n <= 0 {
		return nil
	}
	out := make([]*Slot, 0, min(n, p.tree.Len()))
	p.tree.Ascend(func(slot *Slot) bool {
		out = append(out, slot)
		return len(out) < n
	})
	return out
}

func (v *Vehicle) fits(slot *Slot) bool {
	return slot.EligibleFor(v)
}
