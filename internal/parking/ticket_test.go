package parking

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTicket(t *testing.T) {
	slot := regular(1, 30)
	vehicle := car("KA01HH1234")

	ticket := NewTicket(vehicle, slot, noon)

	assert.True(t, strings.HasPrefix(ticket.ID, "TKT"))
	assert.Len(t, ticket.ID, 11)
	assert.Equal(t, noon, ticket.EntryTime)
	assert.True(t, ticket.ExitTime.IsZero())
	assert.Zero(t, ticket.Amount)
	assert.False(t, ticket.Paid)
	assert.Same(t, slot, ticket.Slot)
	assert.Same(t, vehicle, ticket.Vehicle)
}

func TestTicketIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTicket(car("A"), regular(1, 1), noon).ID
		assert.False(t, seen[id], "duplicate ticket id %s", id)
		seen[id] = true
	}
}

func TestTicketDurationHours(t *testing.T) {
	ticket := NewTicket(car("A"), regular(1, 1), noon)

	assert.InDelta(t, 0.0, ticket.DurationHours(noon.Add(59*time.Second)), 1e-9)
	assert.InDelta(t, 0.5, ticket.DurationHours(noon.Add(30*time.Minute)), 1e-9)
	assert.InDelta(t, 1.5, ticket.DurationHours(noon.Add(90*time.Minute+40*time.Second)), 1e-9)
	assert.InDelta(t, 0.0, ticket.DurationHours(noon.Add(-time.Hour)), 1e-9)
}

func TestTicketFinalize(t *testing.T) {
	ticket := NewTicket(car("A"), regular(1, 1), noon)
	exit := noon.Add(2 * time.Hour)

	ticket.Finalize(100, exit)

	assert.True(t, ticket.Paid)
	assert.Equal(t, exit, ticket.ExitTime)
	assert.Equal(t, 100.0, ticket.Amount)
	// duration is frozen at the exit time
	assert.InDelta(t, 2.0, ticket.DurationHours(exit.Add(5*time.Hour)), 1e-9)

	ticket.Finalize(999, exit.Add(time.Hour))
	assert.Equal(t, 100.0, ticket.Amount)
	assert.Equal(t, exit, ticket.ExitTime)
}

func TestTicketMoveKeepsEarlierTimeAtOldRate(t *testing.T) {
	entry := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.Local)
	ticket := NewTicket(car("A"), regular(1, 10), entry)
	ticket.moveTo(vip(2, 5), entry.Add(30*time.Minute))

	assert.Equal(t, 2, ticket.Slot.ID)
	// half an hour at 50, the rest of the first hour padded at 100
	assert.InDelta(t, 75.0, ticket.BasePrice(entry.Add(30*time.Minute)), 1e-9)
	assert.InDelta(t, 125.0, ticket.BasePrice(entry.Add(90*time.Minute)), 1e-9)
}
