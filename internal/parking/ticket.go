package parking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Ticket struct {
	ID        string
	Vehicle   *Vehicle
	Slot      *Slot
	EntryTime time.Time
	ExitTime  time.Time
	Amount    float64
	Paid      bool

	// Charge already earned on slots the vehicle was moved away from, and
	// the elapsed minutes it covers.
	accruedBase    float64
	accruedMinutes int64
}

func NewTicket(vehicle *Vehicle, slot *Slot, now time.Time) *Ticket {
	return &Ticket{
		ID:        newTicketID(),
		Vehicle:   vehicle,
		Slot:      slot,
		EntryTime: now,
	}
}

func newTicketID() string {
	return "TKT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// DurationHours counts whole elapsed minutes up to the exit time, or up to
// now while the ticket is still open.
func (t *Ticket) DurationHours(now time.Time) float64 {
	return float64(t.elapsedMinutes(now)) / 60.0
}

func (t *Ticket) elapsedMinutes(now time.Time) int64 {
	end := now
	if t.Paid {
		end = t.ExitTime
	}
	minutes := int64(end.Sub(t.EntryTime) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return minutes
}

// moveTo bills the time spent so far at the current slot's rate and points
// the ticket at slot. Later time is billed at the new slot's rate.
func (t *Ticket) moveTo(slot *Slot, at time.Time) {
	minutes := t.elapsedMinutes(at)
	if minutes > t.accruedMinutes {
		t.accruedBase += float64(minutes-t.accruedMinutes) / 60.0 * t.Slot.BaseRate
		t.accruedMinutes = minutes
	}
	t.Slot = slot
}

// BasePrice is the pre-multiplier charge as of now: time spent on earlier
// slots at their rates plus the rest at the current slot's rate. A stay
// shorter than MinBillableHours is padded at the current rate.
func (t *Ticket) BasePrice(now time.Time) float64 {
	minutes := t.elapsedMinutes(now)
	current := float64(minutes-t.accruedMinutes) / 60.0
	if total := float64(minutes) / 60.0; total < MinBillableHours {
		current += MinBillableHours - total
	}
	return t.accruedBase + current*t.Slot.BaseRate
}

// Finalize closes the ticket. It is a no-op on an already paid ticket.
func (t *Ticket) Finalize(amount float64, at time.Time) {
	if t.Paid {
		return
	}
	t.ExitTime = at
	t.Amount = amount
	t.Paid = true
}

func (t *Ticket) String() string {
	return fmt.Sprintf("Ticket %s: %s at Slot %d - Rs%.2f", t.ID, t.Vehicle.LicensePlate, t.Slot.ID, t.Amount)
}
