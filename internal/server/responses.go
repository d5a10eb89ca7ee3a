package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"smart-parking/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Lot     string `json:"lot,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type ParkingLotCreateRequest struct {
	Capacity int `json:"capacity"`
}

type ParkVehicleRequest struct {
	LicensePlate string `json:"license_plate"`
	VehicleType  string `json:"vehicle_type"`
	VIP          bool   `json:"vip"`
	Electric     bool   `json:"electric"`
}

type LeaveRequest struct {
	LicensePlate string `json:"license_plate"`
}

type SlotResponse struct {
	ID           int     `json:"id"`
	Category     string  `json:"category"`
	Distance     int     `json:"distance"`
	BaseRate     float64 `json:"base_rate"`
	Occupied     bool    `json:"occupied"`
	LicensePlate string  `json:"license_plate,omitempty"`
}

type VehicleResponse struct {
	LicensePlate string `json:"license_plate"`
	VehicleType  string `json:"vehicle_type"`
	VIP          bool   `json:"vip"`
	Electric     bool   `json:"electric"`
}

type TicketResponse struct {
	ID           string     `json:"id"`
	LicensePlate string     `json:"license_plate"`
	SlotID       int        `json:"slot_id"`
	Category     string     `json:"category"`
	Distance     int        `json:"distance"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
	Amount       float64    `json:"amount"`
	Paid         bool       `json:"paid"`
}

type ParkResponse struct {
	Outcome  parking.AdmitOutcome `json:"outcome"`
	Ticket   *TicketResponse      `json:"ticket,omitempty"`
	Position int                  `json:"position,omitempty"`
}

type LeaveResponse struct {
	Ticket  TicketResponse  `json:"ticket"`
	Amount  float64         `json:"amount"`
	Drained *TicketResponse `json:"drained,omitempty"`
}

type FindVehicleResponse struct {
	LicensePlate string       `json:"license_plate"`
	Slot         SlotResponse `json:"slot"`
}

type QuoteResponse struct {
	Ticket    TicketResponse         `json:"ticket"`
	Quote     float64                `json:"quote"`
	Settle    float64                `json:"settle"`
	Breakdown parking.PriceBreakdown `json:"breakdown"`
}

type StatusResponse struct {
	parking.Stats
	OccupiedSlots    []SlotResponse    `json:"occupied_slots"`
	NearestAvailable []SlotResponse    `json:"nearest_available"`
	Queue            []VehicleResponse `json:"queue"`
}

func newSlotResponse(s parking.Slot) SlotResponse {
	resp := SlotResponse{
		ID:       s.ID,
		Category: string(s.Category),
		Distance: s.Distance,
		BaseRate: s.BaseRate,
		Occupied: s.IsOccupied,
	}
	if s.IsOccupied && s.Vehicle != nil {
		resp.LicensePlate = s.Vehicle.LicensePlate
	}
	return resp
}

func newSlotResponses(slots []parking.Slot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = newSlotResponse(s)
	}
	return out
}

func newVehicleResponse(v parking.Vehicle) VehicleResponse {
	return VehicleResponse{
		LicensePlate: v.LicensePlate,
		VehicleType:  v.Type,
		VIP:          v.VIP,
		Electric:     v.Electric,
	}
}

func newQueueResponse(backlog []parking.Vehicle) []VehicleResponse {
	out := make([]VehicleResponse, len(backlog))
	for i, v := range backlog {
		out[i] = newVehicleResponse(v)
	}
	return out
}

func newTicketResponse(t *parking.Ticket) *TicketResponse {
	if t == nil {
		return nil
	}
	resp := &TicketResponse{
		ID:           t.ID,
		LicensePlate: t.Vehicle.LicensePlate,
		SlotID:       t.Slot.ID,
		Category:     string(t.Slot.Category),
		Distance:     t.Slot.Distance,
		EntryTime:    t.EntryTime,
		Amount:       t.Amount,
		Paid:         t.Paid,
	}
	if t.Paid {
		exit := t.ExitTime
		resp.ExitTime = &exit
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteStatus(ctx, w, http.StatusOK, message, data)
}

// WriteStatus is WriteSuccess with a non-200 success code, such as 202 for a
// queued vehicle.
func WriteStatus(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
