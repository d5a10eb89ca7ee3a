package parking

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	layoutSeed = 42

	RegularRate = 50.0
	VIPRate     = 100.0
	EVRate      = 80.0
)

type distanceRange struct {
	min, span int
}

// Premium slots sit closer to the entrance.
var distanceRanges = map[SlotCategory]distanceRange{
	CategoryVIP:        {min: 5, span: 20},
	CategoryEVCharging: {min: 15, span: 30},
	CategoryRegular:    {min: 25, span: 50},
}

// SlotRegistry is the fixed slot catalog of one lot.
type SlotRegistry struct {
	slots    []*Slot
	byID     map[int]*Slot
	counts   map[SlotCategory]int
	rng      *rand.Rand
	capacity int
}

// SlotMix returns how many VIP, EV charging and regular slots a lot of the
// given capacity gets. The VIP and EV minimums are clamped to capacity.
func SlotMix(capacity int) (vip, ev, regular int) {
	if capacity <= 0 {
		return 0, 0, 0
	}
	vip = min(max(1, int(math.Round(0.1*float64(capacity)))), capacity)
	ev = min(max(1, int(math.Round(0.2*float64(capacity)))), capacity-vip)
	regular = capacity - vip - ev
	return vip, ev, regular
}

func NewSlotRegistry(capacity int) (*SlotRegistry, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	r := &SlotRegistry{
		slots:    make([]*Slot, 0, capacity),
		byID:     make(map[int]*Slot, capacity),
		counts:   make(map[SlotCategory]int, 3),
		rng:      rand.New(rand.NewSource(layoutSeed)),
		capacity: capacity,
	}

	vip, ev, regular := SlotMix(capacity)
	r.addGenerated(CategoryVIP, vip, VIPRate)
	r.addGenerated(CategoryEVCharging, ev, EVRate)
	r.addGenerated(CategoryRegular, regular, RegularRate)

	return r, nil
}

func (r *SlotRegistry) addGenerated(category SlotCategory, count int, rate float64) {
	dr := distanceRanges[category]
	for i := 0; i < count; i++ {
		distance := dr.min + r.rng.Intn(dr.span)
		r.add(NewSlot(len(r.slots)+1, category, distance, rate))
	}
}

func (r *SlotRegistry) add(slot *Slot) {
	r.slots = append(r.slots, slot)
	r.byID[slot.ID] = slot
	r.counts[slot.Category]++
}

// NewSlotRegistryFromSlots builds a catalog from hand-made slots.
func NewSlotRegistryFromSlots(slots ...*Slot) (*SlotRegistry, error) {
	if len(slots) == 0 {
		return nil, ErrInvalidCapacity
	}

	r := &SlotRegistry{
		slots:    make([]*Slot, 0, len(slots)),
		byID:     make(map[int]*Slot, len(slots)),
		counts:   make(map[SlotCategory]int, 3),
		capacity: len(slots),
	}
	for _, slot := range slots {
		switch {
		case slot == nil:
			return nil, fmt.Errorf("%w: nil slot", ErrInvalidSlot)
		case !slot.Category.Valid():
			return nil, fmt.Errorf("%w: slot %d has unknown category %q", ErrInvalidSlot, slot.ID, slot.Category)
		case slot.Distance < 0:
			return nil, fmt.Errorf("%w: slot %d has negative distance", ErrInvalidSlot, slot.ID)
		case slot.BaseRate <= 0:
			return nil, fmt.Errorf("%w: slot %d has non-positive rate", ErrInvalidSlot, slot.ID)
		case slot.IsOccupied:
			return nil, fmt.Errorf("%w: slot %d is already occupied", ErrInvalidSlot, slot.ID)
		}
		if _, dup := r.byID[slot.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate slot id %d", ErrInvalidSlot, slot.ID)
		}
		r.add(slot)
	}
	return r, nil
}

func (r *SlotRegistry) Slots() []*Slot {
	out := make([]*Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

func (r *SlotRegistry) Slot(id int) (*Slot, bool) {
	slot, ok := r.byID[id]
	return slot, ok
}

func (r *SlotRegistry) Capacity() int {
	return r.capacity
}

func (r *SlotRegistry) Count(category SlotCategory) int {
	return r.counts[category]
}
