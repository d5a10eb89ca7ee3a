package parking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotMix(t *testing.T) {
	tests := []struct {
		capacity             int
		vip, ev, regularWant int
	}{
		{capacity: 1, vip: 1, ev: 0, regularWant: 0},
		{capacity: 2, vip: 1, ev: 1, regularWant: 0},
		{capacity: 3, vip: 1, ev: 1, regularWant: 1},
		{capacity: 10, vip: 1, ev: 2, regularWant: 7},
		{capacity: 25, vip: 3, ev: 5, regularWant: 17},
		{capacity: 100, vip: 10, ev: 20, regularWant: 70},
	}

	for _, tt := range tests {
		vip, ev, reg := SlotMix(tt.capacity)
		assert.Equal(t, tt.vip, vip, "vip slots for capacity %d", tt.capacity)
		assert.Equal(t, tt.ev, ev, "ev slots for capacity %d", tt.capacity)
		assert.Equal(t, tt.regularWant, reg, "regular slots for capacity %d", tt.capacity)
		assert.Equal(t, tt.capacity, vip+ev+reg)
	}
}

func TestNewSlotRegistry(t *testing.T) {
	r, err := NewSlotRegistry(10)
	require.NoError(t, err)

	slots := r.Slots()
	require.Len(t, slots, 10)
	assert.Equal(t, 1, r.Count(CategoryVIP))
	assert.Equal(t, 2, r.Count(CategoryEVCharging))
	assert.Equal(t, 7, r.Count(CategoryRegular))

	for i, slot := range slots {
		assert.Equal(t, i+1, slot.ID)
		assert.False(t, slot.IsOccupied)

		dr := distanceRanges[slot.Category]
		assert.GreaterOrEqual(t, slot.Distance, dr.min)
		assert.Less(t, slot.Distance, dr.min+dr.span)
	}

	assert.Equal(t, CategoryVIP, slots[0].Category)
	assert.Equal(t, VIPRate, slots[0].BaseRate)
	assert.Equal(t, CategoryEVCharging, slots[1].Category)
	assert.Equal(t, EVRate, slots[2].BaseRate)
	assert.Equal(t, CategoryRegular, slots[3].Category)
	assert.Equal(t, RegularRate, slots[9].BaseRate)
}

func TestSlotRegistryLayoutIsDeterministic(t *testing.T) {
	a, err := NewSlotRegistry(40)
	require.NoError(t, err)
	b, err := NewSlotRegistry(40)
	require.NoError(t, err)

	as, bs := a.Slots(), b.Slots()
	for i := range as {
		assert.Equal(t, as[i].Distance, bs[i].Distance, "slot %d", as[i].ID)
		assert.Equal(t, as[i].Category, bs[i].Category, "slot %d", as[i].ID)
	}
}

func TestNewSlotRegistryInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -3} {
		_, err := NewSlotRegistry(capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestNewSlotRegistryFromSlots(t *testing.T) {
	r, err := NewSlotRegistryFromSlots(regular(1, 50), vip(2, 5), ev(3, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Capacity())

	slot, ok := r.Slot(2)
	require.True(t, ok)
	assert.Equal(t, CategoryVIP, slot.Category)

	_, ok = r.Slot(9)
	assert.False(t, ok)
}

func TestNewSlotRegistryFromSlotsRejectsBadSlots(t *testing.T) {
	occupied := regular(2, 10)
	occupied.Park(car("X"))

	tests := map[string][]*Slot{
		"empty":          nil,
		"nil slot":       {regular(1, 1), nil},
		"duplicate id":   {regular(1, 1), regular(1, 2)},
		"negative dist":  {regular(1, -1)},
		"zero rate":      {NewSlot(1, CategoryRegular, 10, 0)},
		"bad category":   {NewSlot(1, SlotCategory("COMPACT"), 10, 10)},
		"already parked": {regular(1, 1), occupied},
	}

	for name, slots := range tests {
		_, err := NewSlotRegistryFromSlots(slots...)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrInvalidCapacity), name)
	}
}
