package parking

import "sort"

type Move struct {
	LicensePlate string `json:"license_plate"`
	FromSlot     int    `json:"from_slot"`
	ToSlot       int    `json:"to_slot"`
	FromDistance int    `json:"from_distance"`
	ToDistance   int    `json:"to_distance"`
}

type OptimizationReport struct {
	Candidates int    `json:"candidates"`
	Moves      []Move `json:"moves"`
}

// Optimize moves parked vehicles into strictly closer slots they may use.
// Candidates are collected first; each target is then looked up again at
// move time because earlier moves in the same pass return slots to the pool.
// Tickets keep their id and entry time and only point at the new slot.
func (pl *ParkingLot) Optimize() OptimizationReport {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	plates := make([]string, 0, len(pl.occupied))
	for plate := range pl.occupied {
		plates = append(plates, plate)
	}
	sort.Strings(plates)

	var candidates []string
	for _, plate := range plates {
		current := pl.occupied[plate]
		if pl.available.CloserThan(current.Vehicle, current.Distance) != nil {
			candidates = append(candidates, plate)
		}
	}

	report := OptimizationReport{Candidates: len(candidates)}
	for _, plate := range candidates {
		if move, ok := pl.reallocate(plate); ok {
			report.Moves = append(report.Moves, move)
		}
	}
	return report
}

func (pl *ParkingLot) reallocate(plate string) (Move, bool) {
	current := pl.occupied[plate]
	vehicle := current.Vehicle

	better := pl.available.CloserThan(vehicle, current.Distance)
	if better == nil {
		return Move{}, false
	}

	pl.available.Remove(better)
	current.Leave()
	better.Park(vehicle)
	pl.available.Add(current)

	pl.occupied[plate] = better
	pl.tickets[plate].moveTo(better, pl.clock.Now())

	return Move{
		LicensePlate: plate,
		FromSlot:     current.ID,
		ToSlot:       better.ID,
		FromDistance: current.Distance,
		ToDistance:   better.Distance,
	}, true
}
