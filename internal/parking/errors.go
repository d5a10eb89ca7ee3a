package parking

import "errors"

var (
	ErrInvalidCapacity       = errors.New("capacity must be greater than 0")
	ErrInvalidVehicle        = errors.New("vehicle must have a license plate")
	ErrInvalidSlot           = errors.New("invalid slot")
	ErrDuplicateAdmission    = errors.New("vehicle already parked")
	ErrVehicleAlreadyEntered = errors.New("vehicle entry time already set")
	ErrNotParked             = errors.New("vehicle not found in parking lot")
)
