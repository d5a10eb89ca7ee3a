package parking

import "fmt"

type SlotCategory string

const (
	CategoryRegular    SlotCategory = "REGULAR"
	CategoryVIP        SlotCategory = "VIP"
	CategoryEVCharging SlotCategory = "EV_CHARGING"
)

// priority breaks distance ties in the available pool: higher wins.
func (c SlotCategory) priority() int {
	switch c {
	case CategoryVIP:
		return 3
	case CategoryEVCharging:
		return 2
	default:
		return 1
	}
}

func (c SlotCategory) Valid() bool {
	return c == CategoryRegular || c == CategoryVIP || c == CategoryEVCharging
}

type Slot struct {
	ID         int
	Category   SlotCategory
	Distance   int
	BaseRate   float64
	IsOccupied bool
	Vehicle    *Vehicle
}

func NewSlot(id int, category SlotCategory, distance int, baseRate float64) *Slot {
	return &Slot{
		ID:         id,
		Category:   category,
		Distance:   distance,
		BaseRate:   baseRate,
		IsOccupied: false,
		Vehicle:    nil,
	}
}

// AcceptsVehicle reports whether the slot's category allows the vehicle,
// ignoring occupancy.
func (s *Slot) AcceptsVehicle(vehicle *Vehicle) bool {
	switch s.Category {
	case CategoryEVCharging:
		return vehicle.Electric
	case CategoryVIP:
		return vehicle.VIP
	default:
		return true
	}
}

// EligibleFor is AcceptsVehicle on a free slot.
func (s *Slot) EligibleFor(vehicle *Vehicle) bool {
	return !s.IsOccupied && s.AcceptsVehicle(vehicle)
}

func (s *Slot) Park(vehicle *Vehicle) {
	s.Vehicle = vehicle
	s.IsOccupied = true
}

func (s *Slot) Leave() *Vehicle {
	vehicle := s.Vehicle
	s.Vehicle = nil
	s.IsOccupied = false
	return vehicle
}

func (s *Slot) String() string {
	status := "AVAILABLE"
	if s.IsOccupied {
		status = "OCCUPIED"
	}
	return fmt.Sprintf("Slot#%02d [%s] %dm Rs%.0f/hr %s", s.ID, s.Category, s.Distance, s.BaseRate, status)
}
