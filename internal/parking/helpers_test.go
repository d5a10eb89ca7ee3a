package parking

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"
)

// noon keeps quotes off-peak unless a test says otherwise.
var noon = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.Local)

func mockClockAt(at time.Time) *clock.Mock {
	c := clock.NewMock()
	c.Add(at.Sub(c.Now()))
	return c
}

func newTestLot(t *testing.T, slots ...*Slot) (*ParkingLot, *clock.Mock) {
	t.Helper()
	registry, err := NewSlotRegistryFromSlots(slots...)
	require.NoError(t, err)
	c := mockClockAt(noon)
	return NewParkingLotFromRegistry(registry, WithClock(c)), c
}

func regular(id, distance int) *Slot {
	return NewSlot(id, CategoryRegular, distance, RegularRate)
}

func vip(id, distance int) *Slot {
	return NewSlot(id, CategoryVIP, distance, VIPRate)
}

func ev(id, distance int) *Slot {
	return NewSlot(id, CategoryEVCharging, distance, EVRate)
}

func car(plate string) *Vehicle {
	return NewVehicle(plate, "CAR", false, false)
}

func vipCar(plate string) *Vehicle {
	return NewVehicle(plate, "CAR", true, false)
}

func electricCar(plate string) *Vehicle {
	return NewVehicle(plate, "CAR", false, true)
}

func mustPark(t *testing.T, pl *ParkingLot, v *Vehicle) *Ticket {
	t.Helper()
	res, err := pl.Admit(v)
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, res.Outcome, "expected %s to be parked", v.LicensePlate)
	require.NotNil(t, res.Ticket)
	return res.Ticket
}

func requireValid(t *testing.T, pl *ParkingLot) {
	t.Helper()
	require.NoError(t, pl.validate())
}
