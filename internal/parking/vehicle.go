package parking

import (
	"strings"
	"time"
)

type Vehicle struct {
	LicensePlate string
	Type         string
	VIP          bool
	Electric     bool

	entryTime time.Time
}

func NewVehicle(licensePlate, vehicleType string, vip, electric bool) *Vehicle {
	return &Vehicle{
		LicensePlate: strings.TrimSpace(licensePlate),
		Type:         vehicleType,
		VIP:          vip,
		Electric:     electric,
	}
}

// EntryTime is zero until the vehicle has been admitted.
func (v *Vehicle) EntryTime() time.Time {
	return v.entryTime
}

func (v *Vehicle) HasEntered() bool {
	return !v.entryTime.IsZero()
}

func (v *Vehicle) setEntryTime(t time.Time) error {
	if v.HasEntered() {
		return ErrVehicleAlreadyEntered
	}
	v.entryTime = t
	return nil
}

func (v *Vehicle) String() string {
	s := v.LicensePlate + " [" + v.Type + "]"
	if v.VIP {
		s += " [VIP]"
	}
	if v.Electric {
		s += " [EV]"
	}
	return s
}
