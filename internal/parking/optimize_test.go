package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeMovesToCloserSlot(t *testing.T) {
	pl, clk := newTestLot(t, regular(1, 10), regular(2, 20))
	mustPark(t, pl, car("A"))
	before := mustPark(t, pl, car("B"))
	require.Equal(t, 2, before.Slot.ID)
	clk.Add(30 * time.Minute)

	_, err := pl.Release("A")
	require.NoError(t, err)

	report := pl.Optimize()

	require.Len(t, report.Moves, 1)
	assert.Equal(t, Move{LicensePlate: "B", FromSlot: 2, ToSlot: 1, FromDistance: 20, ToDistance: 10}, report.Moves[0])

	slot, ok := pl.FindOccupiedSlot("B")
	require.True(t, ok)
	assert.Equal(t, 1, slot.ID)

	after, ok := pl.ActiveTicket("B")
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.EntryTime.Equal(after.EntryTime))
	assert.Equal(t, 1, after.Slot.ID)

	nearest := pl.NearestAvailable(NearestReportSize)
	require.Len(t, nearest, 1)
	assert.Equal(t, 2, nearest[0].ID)
	requireValid(t, pl)
}

func TestOptimizeIgnoresEqualDistance(t *testing.T) {
	pl, _ := newTestLot(t, regular(1, 10), regular(2, 10))
	mustPark(t, pl, car("A"))
	mustPark(t, pl, car("B"))
	_, err := pl.Release("A")
	require.NoError(t, err)

	report := pl.Optimize()

	assert.Zero(t, report.Candidates)
	assert.Empty(t, report.Moves)
	slot, _ := pl.FindOccupiedSlot("B")
	assert.Equal(t, 2, slot.ID)
}

func TestOptimizeRespectsEligibility(t *testing.T) {
	pl, _ := newTestLot(t, regular(1, 40), vip(2, 5), ev(3, 8))
	mustPark(t, pl, car("A"))

	report := pl.Optimize()

	assert.Empty(t, report.Moves)
	slot, _ := pl.FindOccupiedSlot("A")
	assert.Equal(t, 1, slot.ID)
}

func TestOptimizeNeverAssignsSameTargetTwice(t *testing.T) {
	pl, _ := newTestLot(t, regular(1, 5), regular(2, 30), regular(3, 40))
	mustPark(t, pl, car("X"))
	mustPark(t, pl, car("A"))
	mustPark(t, pl, car("B"))
	_, err := pl.Release("X")
	require.NoError(t, err)

	report := pl.Optimize()

	assert.Equal(t, 2, report.Candidates)
	require.Len(t, report.Moves, 2)

	targets := map[int]string{}
	for _, m := range report.Moves {
		assert.Less(t, m.ToDistance, m.FromDistance, "move for %s is not strictly closer", m.LicensePlate)
		prev, dup := targets[m.ToSlot]
		assert.False(t, dup, "slot %d assigned to %s and %s", m.ToSlot, prev, m.LicensePlate)
		targets[m.ToSlot] = m.LicensePlate
	}

	a, _ := pl.FindOccupiedSlot("A")
	b, _ := pl.FindOccupiedSlot("B")
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID, "B takes the slot A vacated in the same pass")
	requireValid(t, pl)
}

func TestOptimizeRepricesAtNewSlotRate(t *testing.T) {
	pl, clk := newTestLot(t, ev(1, 10), regular(2, 40))
	mustPark(t, pl, electricCar("HOLD"))
	ticket := mustPark(t, pl, electricCar("E"))
	require.Equal(t, 2, ticket.Slot.ID)
	_, err := pl.Release("HOLD")
	require.NoError(t, err)

	report := pl.Optimize()
	require.Len(t, report.Moves, 1)
	clk.Add(2 * time.Hour)

	est, err := pl.Estimate("E")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, est.Ticket.ID)
	assert.Equal(t, EVRate, est.Breakdown.BaseRate)
	// occupancy 0.5: settle 2h * 80, quote adds the 10% EV discount
	assert.InDelta(t, 160.0, est.Settle, 0.001)
	assert.InDelta(t, 144.0, est.Quote, 0.001)
}

func TestOptimizeKeepsAccruedChargeAtOldRate(t *testing.T) {
	pl, clk := newTestLot(t, vip(1, 10), regular(2, 40))
	mustPark(t, pl, vipCar("HOLD"))
	ticket := mustPark(t, pl, vipCar("B"))
	require.Equal(t, 2, ticket.Slot.ID)
	clk.Add(2 * time.Hour)

	_, err := pl.Release("HOLD")
	require.NoError(t, err)
	report := pl.Optimize()
	require.Len(t, report.Moves, 1)
	require.Equal(t, 1, report.Moves[0].ToSlot)

	// 2h already spent at the regular rate, nothing yet at the VIP rate
	est, err := pl.Estimate("B")
	require.NoError(t, err)
	assert.Equal(t, VIPRate, est.Breakdown.BaseRate)
	assert.InDelta(t, 2.0, est.Breakdown.Hours, 1e-9)
	assert.InDelta(t, 100.0, est.Breakdown.BasePrice, 1e-9)
	assert.InDelta(t, 80.0, est.Settle, 0.001)
	assert.InDelta(t, 80.0, est.Quote, 0.001)

	clk.Add(time.Hour)
	receipt, err := pl.Release("B")
	require.NoError(t, err)
	// (2h * 50 + 1h * 100) less the VIP discount
	assert.InDelta(t, 160.0, receipt.Amount, 0.001)
	requireValid(t, pl)
}

func TestOptimizeLeavesEarlierTicketCopiesUntouched(t *testing.T) {
	pl, _ := newTestLot(t, regular(1, 10), regular(2, 20))
	mustPark(t, pl, car("A"))
	issued := mustPark(t, pl, car("B"))

	_, err := pl.Release("A")
	require.NoError(t, err)
	require.Len(t, pl.Optimize().Moves, 1)

	assert.Equal(t, 2, issued.Slot.ID)
	assert.True(t, issued.Slot.IsOccupied)
	require.NotNil(t, issued.Slot.Vehicle)
	assert.Equal(t, "B", issued.Slot.Vehicle.LicensePlate)

	issued.Slot.IsOccupied = false
	issued.Slot.Vehicle = nil
	issued.Vehicle.LicensePlate = "CHANGED"

	slot, ok := pl.FindOccupiedSlot("B")
	require.True(t, ok)
	assert.Equal(t, 1, slot.ID)
	assert.True(t, slot.IsOccupied)
	requireValid(t, pl)
}
