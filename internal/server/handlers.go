package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
)

const lotNotCreated = "Parking lot not created. Create parking lot first"

type Handler struct {
	serviceName string
	telemetry   *parking.TelemetryProvider
	lotOptions  []parking.Option

	events *EventHub

	parkingLot *parking.InstrumentedParkingLot
	mu         sync.RWMutex
}

func NewHandler(serviceName string, telemetry *parking.TelemetryProvider, lotOptions ...parking.Option) *Handler {
	return &Handler{
		serviceName: serviceName,
		telemetry:   telemetry,
		lotOptions:  lotOptions,
		events:      NewEventHub(),
	}
}

// Events is the hub lot changes are published to.
func (h *Handler) Events() *EventHub {
	return h.events
}

// CreateLot replaces the current lot with a fresh one of the given capacity.
func (h *Handler) CreateLot(capacity int) (*parking.InstrumentedParkingLot, error) {
	lot, err := parking.NewInstrumentedParkingLot(capacity, h.telemetry, h.lotOptions...)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	previous := h.parkingLot
	h.parkingLot = lot
	h.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	h.events.Publish(newLotEvent(EventLotCreated, lot.ParkingLot.Stats()))
	return lot, nil
}

// Lot returns the current lot, or nil before one is created.
func (h *Handler) Lot() *parking.InstrumentedParkingLot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parkingLot
}

func (h *Handler) requireLot(ctx context.Context, w http.ResponseWriter) *parking.InstrumentedParkingLot {
	lot := h.Lot()
	if lot == nil {
		WriteError(ctx, w, http.StatusBadRequest, lotNotCreated)
	}
	return lot
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	}
	if lot := h.Lot(); lot != nil {
		resp.Lot = lot.ID()
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateParkingLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ParkingLotCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lot, err := h.CreateLot(req.Capacity)
	if err != nil {
		writeLotError(ctx, w, err)
		return
	}

	logging.Info(ctx).Str("lot", lot.ID()).Int("capacity", req.Capacity).Msg("parking lot created")
	WriteSuccess(ctx, w, "Parking lot created successfully", lot.Stats(ctx))
}

func (h *Handler) ParkVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	var req ParkVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.LicensePlate) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "License plate is required")
		return
	}
	if req.VehicleType == "" {
		req.VehicleType = "CAR"
	}

	vehicle := parking.NewVehicle(req.LicensePlate, strings.ToUpper(req.VehicleType), req.VIP, req.Electric)
	result, err := lot.Admit(ctx, vehicle)
	if err != nil {
		writeLotError(ctx, w, err)
		return
	}

	resp := ParkResponse{Outcome: result.Outcome, Position: result.Position}
	if result.Outcome == parking.OutcomeQueued {
		event := newLotEvent(EventQueued, lot.ParkingLot.Stats())
		event.LicensePlate = vehicle.LicensePlate
		event.Position = result.Position
		h.events.Publish(event)
		WriteStatus(ctx, w, http.StatusAccepted, "No suitable slot available, vehicle queued", resp)
		return
	}
	event := newLotEvent(EventParked, lot.ParkingLot.Stats())
	event.LicensePlate = vehicle.LicensePlate
	event.SlotID = result.Ticket.Slot.ID
	h.events.Publish(event)

	resp.Ticket = newTicketResponse(result.Ticket)
	WriteSuccess(ctx, w, "Vehicle parked successfully", resp)
}

func (h *Handler) LeaveSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.LicensePlate) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "License plate is required")
		return
	}

	receipt, err := lot.Release(ctx, req.LicensePlate)
	if err != nil {
		writeLotError(ctx, w, err)
		return
	}

	h.publishRelease(lot, receipt)

	WriteSuccess(ctx, w, "Slot vacated successfully", LeaveResponse{
		Ticket:  *newTicketResponse(receipt.Ticket),
		Amount:  receipt.Amount,
		Drained: newTicketResponse(receipt.Drained),
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	WriteSuccess(ctx, w, "Status retrieved successfully", StatusResponse{
		Stats:            lot.Stats(ctx),
		OccupiedSlots:    newSlotResponses(lot.OccupiedSlots()),
		NearestAvailable: newSlotResponses(lot.NearestAvailable(parking.NearestReportSize)),
		Queue:            newQueueResponse(lot.Backlog()),
	})
}

func (h *Handler) FindByPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	plate := chi.URLParam(r, "plate")
	slot, ok := lot.FindOccupiedSlot(ctx, plate)
	if !ok {
		WriteError(ctx, w, http.StatusNotFound, "Vehicle not found")
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", FindVehicleResponse{
		LicensePlate: slot.Vehicle.LicensePlate,
		Slot:         newSlotResponse(slot),
	})
}

func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	WriteSuccess(ctx, w, "Current pricing", lot.Pricing())
}

func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	est, err := lot.Estimate(ctx, chi.URLParam(r, "plate"))
	if err != nil {
		writeLotError(ctx, w, err)
		return
	}

	WriteSuccess(ctx, w, "Quote calculated", QuoteResponse{
		Ticket:    *newTicketResponse(&est.Ticket),
		Quote:     est.Quote,
		Settle:    est.Settle,
		Breakdown: est.Breakdown,
	})
}

func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	WriteSuccess(ctx, w, "Queue retrieved successfully", newQueueResponse(lot.Backlog()))
}

func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(ctx, w)
	if lot == nil {
		return
	}

	WriteSuccess(ctx, w, "Optimization complete", h.optimize(ctx, lot))
}

func (h *Handler) optimize(ctx context.Context, lot *parking.InstrumentedParkingLot) parking.OptimizationReport {
	report := lot.Optimize(ctx)
	if len(report.Moves) == 0 {
		return report
	}

	stats := lot.ParkingLot.Stats()
	for _, m := range report.Moves {
		event := newLotEvent(EventRelocated, stats)
		event.LicensePlate = m.LicensePlate
		event.FromSlotID = m.FromSlot
		event.SlotID = m.ToSlot
		h.events.Publish(event)
	}
	return report
}

func (h *Handler) publishRelease(lot *parking.InstrumentedParkingLot, receipt parking.Receipt) {
	stats := lot.ParkingLot.Stats()

	event := newLotEvent(EventReleased, stats)
	event.LicensePlate = receipt.Ticket.Vehicle.LicensePlate
	event.SlotID = receipt.Ticket.Slot.ID
	event.Amount = receipt.Amount
	h.events.Publish(event)

	if d := receipt.Drained; d != nil {
		event := newLotEvent(EventDrained, stats)
		event.LicensePlate = d.Vehicle.LicensePlate
		event.SlotID = d.Slot.ID
		h.events.Publish(event)
	}
}

func writeLotError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, parking.ErrNotParked):
		status = http.StatusNotFound
	case errors.Is(err, parking.ErrDuplicateAdmission), errors.Is(err, parking.ErrVehicleAlreadyEntered):
		status = http.StatusConflict
	case errors.Is(err, parking.ErrInvalidCapacity), errors.Is(err, parking.ErrInvalidVehicle):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.Error(ctx).Err(err).Msg("parking lot operation failed")
	}
	WriteError(ctx, w, status, err.Error())
}
