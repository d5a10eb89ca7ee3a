package parking

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/facebookgo/clock"
)

const NearestReportSize = 5

type AdmitOutcome string

const (
	OutcomeParked AdmitOutcome = "parked"
	OutcomeQueued AdmitOutcome = "queued"
)

// AdmitResult is either a parked vehicle with its ticket, or a queued
// vehicle with its 1-based backlog position.
type AdmitResult struct {
	Outcome  AdmitOutcome
	Ticket   *Ticket
	Position int
}

type Receipt struct {
	Ticket *Ticket
	Amount float64
	// Drained is the ticket of the backlog vehicle admitted into the freed
	// capacity, if any.
	Drained *Ticket
}

type Stats struct {
	LotID          string  `json:"lot_id"`
	TotalSlots     int     `json:"total_slots"`
	Occupied       int     `json:"occupied"`
	Available      int     `json:"available"`
	Backlog        int     `json:"backlog"`
	Revenue        float64 `json:"revenue"`
	VehiclesServed int     `json:"vehicles_served"`
	OccupancyRate  float64 `json:"occupancy_rate"`
	VIPSlots       int     `json:"vip_slots"`
	EVSlots        int     `json:"ev_slots"`
	RegularSlots   int     `json:"regular_slots"`
}

type Estimate struct {
	Ticket    Ticket         `json:"-"`
	Quote     float64        `json:"quote"`
	Settle    float64        `json:"settle"`
	Breakdown PriceBreakdown `json:"breakdown"`
}

type Option func(*ParkingLot)

func WithClock(c clock.Clock) Option {
	return func(pl *ParkingLot) {
		pl.clock = c
	}
}

// ParkingLot owns the allocation state of one lot. Every exported method
// holds mu for its whole duration.
type ParkingLot struct {
	mu sync.Mutex

	id        string
	registry  *SlotRegistry
	available *AvailablePool
	occupied  map[string]*Slot
	tickets   map[string]*Ticket
	backlog   []*Vehicle

	occupiedCount  int
	revenue        float64
	vehiclesServed int

	clock   clock.Clock
	pricing PriceCalculator
}

func NewParkingLot(capacity int, opts ...Option) (*ParkingLot, error) {
	registry, err := NewSlotRegistry(capacity)
	if err != nil {
		return nil, err
	}
	return NewParkingLotFromRegistry(registry, opts...), nil
}

func NewParkingLotFromRegistry(registry *SlotRegistry, opts ...Option) *ParkingLot {
	pl := &ParkingLot{
		registry:  registry,
		available: NewAvailablePool(),
		occupied:  make(map[string]*Slot),
		tickets:   make(map[string]*Ticket),
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(pl)
	}

	pl.id = fmt.Sprintf("LOT-%03d", pl.clock.Now().UnixMilli()%1000)
	for _, slot := range registry.Slots() {
		pl.available.Add(slot)
	}
	return pl
}

func (pl *ParkingLot) ID() string {
	return pl.id
}

func (pl *ParkingLot) Capacity() int {
	return pl.registry.Capacity()
}

// Admit parks the vehicle in the nearest slot it may use, or queues it when
// no such slot is free. A plate already waiting keeps its place in the queue.
func (pl *ParkingLot) Admit(vehicle *Vehicle) (AdmitResult, error) {
	if vehicle == nil {
		return AdmitResult{}, ErrInvalidVehicle
	}
	vehicle.LicensePlate = strings.TrimSpace(vehicle.LicensePlate)
	if vehicle.LicensePlate == "" {
		return AdmitResult{}, ErrInvalidVehicle
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if _, parked := pl.occupied[vehicle.LicensePlate]; parked {
		return AdmitResult{}, ErrDuplicateAdmission
	}
	if pos := pl.backlogPosition(vehicle.LicensePlate); pos > 0 {
		return AdmitResult{Outcome: OutcomeQueued, Position: pos}, nil
	}
	if vehicle.HasEntered() {
		return AdmitResult{}, ErrVehicleAlreadyEntered
	}

	ticket, err := pl.place(vehicle)
	if err != nil {
		return AdmitResult{}, err
	}
	if ticket == nil {
		pl.backlog = append(pl.backlog, vehicle)
		return AdmitResult{Outcome: OutcomeQueued, Position: len(pl.backlog)}, nil
	}
	return AdmitResult{Outcome: OutcomeParked, Ticket: ticket}, nil
}

// place allocates the nearest eligible slot. It returns a nil ticket when
// nothing fits.
func (pl *ParkingLot) place(vehicle *Vehicle) (*Ticket, error) {
	slot := pl.available.NearestFor(vehicle)
	if slot == nil {
		return nil, nil
	}

	now := pl.clock.Now()
	if err := vehicle.setEntryTime(now); err != nil {
		return nil, err
	}

	slot.Park(vehicle)
	pl.available.Remove(slot)
	pl.occupied[vehicle.LicensePlate] = slot

	ticket := NewTicket(vehicle, slot, now)
	pl.tickets[vehicle.LicensePlate] = ticket
	pl.occupiedCount++

	return snapshot(ticket), nil
}

func (pl *ParkingLot) backlogPosition(plate string) int {
	for i, v := range pl.backlog {
		if v.LicensePlate == plate {
			return i + 1
		}
	}
	return 0
}

// Release settles and closes the plate's ticket, frees its slot, then tries
// to admit the vehicle at the head of the backlog.
func (pl *ParkingLot) Release(plate string) (Receipt, error) {
	plate = strings.TrimSpace(plate)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	slot, hasSlot := pl.occupied[plate]
	ticket, hasTicket := pl.tickets[plate]
	if !hasSlot && !hasTicket {
		return Receipt{}, ErrNotParked
	}
	if hasSlot != hasTicket {
		panic(fmt.Sprintf("parking: occupied index and ticket index disagree for %q", plate))
	}

	now := pl.clock.Now()
	amount := pl.pricing.Settle(ticket, pl.occupancyRate(), now)
	ticket.Finalize(amount, now)
	pl.revenue = RoundCents(pl.revenue + amount)
	pl.vehiclesServed++

	slot.Leave()
	delete(pl.occupied, plate)
	delete(pl.tickets, plate)
	pl.available.Add(slot)
	pl.occupiedCount--

	return Receipt{
		Ticket:  snapshot(ticket),
		Amount:  amount,
		Drained: pl.drainOne(),
	}, nil
}

// drainOne retries admission for the backlog head only. A head that still
// does not fit stays where it is.
func (pl *ParkingLot) drainOne() *Ticket {
	if len(pl.backlog) == 0 {
		return nil
	}

	head := pl.backlog[0]
	ticket, err := pl.place(head)
	if err != nil {
		// The record was stamped outside this lot; it can never be placed.
		pl.backlog = pl.backlog[1:]
		return nil
	}
	if ticket == nil {
		return nil
	}
	pl.backlog[0] = nil
	pl.backlog = pl.backlog[1:]
	return ticket
}

// FindOccupiedSlot returns a copy of the slot the plate is parked in.
func (pl *ParkingLot) FindOccupiedSlot(plate string) (Slot, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	slot, ok := pl.occupied[strings.TrimSpace(plate)]
	if !ok {
		return Slot{}, false
	}
	return copySlot(slot), true
}

func (pl *ParkingLot) ActiveTicket(plate string) (Ticket, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	ticket, ok := pl.tickets[strings.TrimSpace(plate)]
	if !ok {
		return Ticket{}, false
	}
	return *snapshot(ticket), true
}

// Estimate prices a parked vehicle as of now without releasing it.
func (pl *ParkingLot) Estimate(plate string) (Estimate, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	ticket, ok := pl.tickets[strings.TrimSpace(plate)]
	if !ok {
		return Estimate{}, ErrNotParked
	}

	now := pl.clock.Now()
	occupancy := pl.occupancyRate()
	breakdown := pl.pricing.Breakdown(ticket, occupancy, now)
	return Estimate{
		Ticket:    *snapshot(ticket),
		Quote:     breakdown.Final,
		Settle:    pl.pricing.Settle(ticket, occupancy, now),
		Breakdown: breakdown,
	}, nil
}

func (pl *ParkingLot) Pricing() PricingInfo {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return pl.pricing.CurrentPricing(pl.occupancyRate())
}

func (pl *ParkingLot) OccupancyRate() float64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return pl.occupancyRate()
}

func (pl *ParkingLot) occupancyRate() float64 {
	return float64(pl.occupiedCount) / float64(pl.registry.Capacity())
}

func (pl *ParkingLot) Stats() Stats {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return Stats{
		LotID:          pl.id,
		TotalSlots:     pl.registry.Capacity(),
		Occupied:       pl.occupiedCount,
		Available:      pl.available.Len(),
		Backlog:        len(pl.backlog),
		Revenue:        pl.revenue,
		VehiclesServed: pl.vehiclesServed,
		OccupancyRate:  pl.occupancyRate(),
		VIPSlots:       pl.registry.Count(CategoryVIP),
		EVSlots:        pl.registry.Count(CategoryEVCharging),
		RegularSlots:   pl.registry.Count(CategoryRegular),
	}
}

// NearestAvailable lists up to n free slots, nearest first.
func (pl *ParkingLot) NearestAvailable(n int) []Slot {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	return copySlots(pl.available.First(n))
}

// OccupiedSlots lists occupied slots ordered by slot id.
func (pl *ParkingLot) OccupiedSlots() []Slot {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	slots := make([]*Slot, 0, len(pl.occupied))
	for _, slot := range pl.occupied {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].ID < slots[j].ID
	})
	return copySlots(slots)
}

// Backlog lists waiting vehicles in FIFO order.
func (pl *ParkingLot) Backlog() []Vehicle {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	out := make([]Vehicle, len(pl.backlog))
	for i, v := range pl.backlog {
		out[i] = *v
	}
	return out
}

// validate checks the partition and index invariants.
func (pl *ParkingLot) validate() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.occupiedCount != len(pl.occupied) || pl.occupiedCount != len(pl.tickets) {
		return fmt.Errorf("occupied count %d, occupied index %d, tickets %d",
			pl.occupiedCount, len(pl.occupied), len(pl.tickets))
	}
	if pl.available.Len()+pl.occupiedCount != pl.registry.Capacity() {
		return fmt.Errorf("available %d + occupied %d != total %d",
			pl.available.Len(), pl.occupiedCount, pl.registry.Capacity())
	}
	for plate, slot := range pl.occupied {
		if !slot.IsOccupied || slot.Vehicle == nil || slot.Vehicle.LicensePlate != plate {
			return fmt.Errorf("slot %d does not hold %s", slot.ID, plate)
		}
		if pl.available.Contains(slot) {
			return fmt.Errorf("occupied slot %d is in the available pool", slot.ID)
		}
		if pl.tickets[plate].Slot != slot {
			return fmt.Errorf("ticket for %s points at another slot", plate)
		}
		if pl.backlogPosition(plate) > 0 {
			return fmt.Errorf("%s is both parked and queued", plate)
		}
	}
	for _, slot := range pl.registry.Slots() {
		if !slot.IsOccupied && !pl.available.Contains(slot) {
			return fmt.Errorf("free slot %d is missing from the available pool", slot.ID)
		}
	}
	return nil
}

// snapshot copies the ticket together with its vehicle and slot, so later
// moves and releases do not show through.
func snapshot(t *Ticket) *Ticket {
	c := *t
	vehicle := *t.Vehicle
	slot := *t.Slot
	slot.Vehicle = nil
	if t.Slot.Vehicle == t.Vehicle {
		slot.Vehicle = &vehicle
	}
	c.Vehicle = &vehicle
	c.Slot = &slot
	return &c
}

func copySlot(s *Slot) Slot {
	c := *s
	if s.Vehicle != nil {
		v := *s.Vehicle
		c.Vehicle = &v
	}
	return c
}

func copySlots(slots []*Slot) []Slot {
	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = copySlot(s)
	}
	return out
}
