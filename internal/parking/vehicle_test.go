package parking

import (
	"errors"
	"testing"
	"time"
)

func TestNewVehicle(t *testing.T) {
	vehicle := NewVehicle(" KA01HH1234 ", "SUV", true, false)

	if vehicle.LicensePlate != "KA01HH1234" {
		t.Errorf("Expected license plate %s, got %s", "KA01HH1234", vehicle.LicensePlate)
	}

	if vehicle.Type != "SUV" {
		t.Errorf("Expected type %s, got %s", "SUV", vehicle.Type)
	}

	if !vehicle.VIP || vehicle.Electric {
		t.Errorf("Expected VIP non-electric vehicle, got %s", vehicle)
	}

	if vehicle.HasEntered() {
		t.Error("Expected new vehicle to have no entry time")
	}
}

func TestVehicleEntryTimeSetOnce(t *testing.T) {
	vehicle := car("KA01HH1234")
	first := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	if err := vehicle.setEntryTime(first); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	err := vehicle.setEntryTime(first.Add(time.Hour))
	if !errors.Is(err, ErrVehicleAlreadyEntered) {
		t.Errorf("Expected ErrVehicleAlreadyEntered, got %v", err)
	}

	if !vehicle.EntryTime().Equal(first) {
		t.Errorf("Expected entry time %s, got %s", first, vehicle.EntryTime())
	}
}
