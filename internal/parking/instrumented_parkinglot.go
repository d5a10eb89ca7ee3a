package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"smart-parking/internal/logging"
)

type InstrumentedParkingLot struct {
	*ParkingLot
	telemetry *TelemetryProvider

	// Metrics
	admissions        metric.Int64Counter
	releases          metric.Int64Counter
	revenue           metric.Float64Counter
	relocations       metric.Int64Counter
	operationDuration metric.Float64Histogram
	gauges            metric.Registration
}

func NewInstrumentedParkingLot(capacity int, telemetry *TelemetryProvider, opts ...Option) (*InstrumentedParkingLot, error) {
	lot, err := NewParkingLot(capacity, opts...)
	if err != nil {
		return nil, err
	}
	return Instrument(lot, telemetry)
}

// Instrument wraps an existing lot. Call Close when the lot is discarded so
// its gauges stop reporting.
func Instrument(lot *ParkingLot, telemetry *TelemetryProvider) (*InstrumentedParkingLot, error) {
	meter := telemetry.Meter()

	admissions, err := meter.Int64Counter("parking_admissions_total",
		metric.WithDescription("Admission attempts by outcome"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	releases, err := meter.Int64Counter("parking_releases_total",
		metric.WithDescription("Release attempts by status"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	revenue, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Amount settled at release"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	relocations, err := meter.Int64Counter("parking_relocations_total",
		metric.WithDescription("Vehicles moved to a closer slot by optimization"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("parking_operation_duration_seconds",
		metric.WithDescription("Duration of parking lot operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	occupied, err := meter.Int64ObservableGauge("parking_slots_occupied",
		metric.WithDescription("Currently occupied slots"))
	if err != nil {
		return nil, err
	}
	available, err := meter.Int64ObservableGauge("parking_slots_available",
		metric.WithDescription("Currently free slots"))
	if err != nil {
		return nil, err
	}
	backlog, err := meter.Int64ObservableGauge("parking_backlog_length",
		metric.WithDescription("Vehicles waiting for a slot"))
	if err != nil {
		return nil, err
	}

	gauges, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := lot.Stats()
		lotAttr := metric.WithAttributes(attribute.String("lot_id", stats.LotID))
		o.ObserveInt64(occupied, int64(stats.Occupied), lotAttr)
		o.ObserveInt64(available, int64(stats.Available), lotAttr)
		o.ObserveInt64(backlog, int64(stats.Backlog), lotAttr)
		return nil
	}, occupied, available, backlog)
	if err != nil {
		return nil, err
	}

	return &InstrumentedParkingLot{
		ParkingLot:        lot,
		telemetry:         telemetry,
		admissions:        admissions,
		releases:          releases,
		revenue:           revenue,
		relocations:       relocations,
		operationDuration: operationDuration,
		gauges:            gauges,
	}, nil
}

func (ipl *InstrumentedParkingLot) Close() error {
	return ipl.gauges.Unregister()
}

func (ipl *InstrumentedParkingLot) Admit(ctx context.Context, vehicle *Vehicle) (AdmitResult, error) {
	var attrs []attribute.KeyValue
	if vehicle != nil {
		attrs = vehicleAttributes(vehicle)
	}
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.admit", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_nearest_slot")

	result, err := ipl.ParkingLot.Admit(vehicle)

	outcome := string(result.Outcome)
	if err != nil {
		outcome = "rejected"
		failSpan(span, err)
		logging.Warn(ctx).Err(err).Str("plate", plateOf(vehicle)).Msg("admission rejected")
	} else if result.Outcome == OutcomeParked {
		span.SetAttributes(
			attribute.String("ticket.id", result.Ticket.ID),
			attribute.Int("slot.id", result.Ticket.Slot.ID),
		)
		span.AddEvent("slot_allocated", trace.WithAttributes(
			attribute.Int("slot.id", result.Ticket.Slot.ID),
			attribute.Int("slot.distance", result.Ticket.Slot.Distance),
		))
		logging.Info(ctx).
			Str("plate", vehicle.LicensePlate).
			Str("ticket", result.Ticket.ID).
			Int("slot", result.Ticket.Slot.ID).
			Msg("vehicle parked")
	} else {
		span.SetAttributes(attribute.Int("backlog.position", result.Position))
		span.AddEvent("vehicle_queued")
		logging.Info(ctx).
			Str("plate", vehicle.LicensePlate).
			Int("position", result.Position).
			Msg("no suitable slot, vehicle queued")
	}

	labels := metric.WithAttributes(attribute.String("outcome", outcome))
	ipl.admissions.Add(ctx, 1, labels)
	ipl.record(ctx, "admit", start, err)

	return result, err
}

func (ipl *InstrumentedParkingLot) Release(ctx context.Context, plate string) (Receipt, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.release",
		trace.WithAttributes(attribute.String("vehicle.license_plate", plate)))
	defer span.End()

	start := time.Now()
	span.AddEvent("settling_ticket")

	receipt, err := ipl.ParkingLot.Release(plate)

	status := "success"
	if err != nil {
		status = errorStatus(err)
		failSpan(span, err)
		logging.Warn(ctx).Err(err).Str("plate", plate).Msg("release failed")
	} else {
		span.SetAttributes(
			attribute.String("ticket.id", receipt.Ticket.ID),
			attribute.Int("slot.id", receipt.Ticket.Slot.ID),
			attribute.Float64("ticket.amount", receipt.Amount),
		)
		span.AddEvent("slot_released")
		ipl.revenue.Add(ctx, receipt.Amount,
			metric.WithAttributes(attribute.String("slot_category", string(receipt.Ticket.Slot.Category))))
		logging.Info(ctx).
			Str("plate", plate).
			Str("ticket", receipt.Ticket.ID).
			Float64("amount", receipt.Amount).
			Msg("vehicle released")

		if receipt.Drained != nil {
			span.AddEvent("backlog_drained", trace.WithAttributes(
				attribute.String("vehicle.license_plate", receipt.Drained.Vehicle.LicensePlate),
				attribute.Int("slot.id", receipt.Drained.Slot.ID),
			))
			ipl.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "drained")))
			logging.Info(ctx).
				Str("plate", receipt.Drained.Vehicle.LicensePlate).
				Int("slot", receipt.Drained.Slot.ID).
				Msg("queued vehicle parked")
		}
	}

	ipl.releases.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	ipl.record(ctx, "release", start, err)

	return receipt, err
}

func (ipl *InstrumentedParkingLot) FindOccupiedSlot(ctx context.Context, plate string) (Slot, bool) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.find",
		trace.WithAttributes(attribute.String("vehicle.license_plate", plate)))
	defer span.End()

	start := time.Now()
	slot, ok := ipl.ParkingLot.FindOccupiedSlot(plate)
	if ok {
		span.SetAttributes(attribute.Int("slot.id", slot.ID))
		span.AddEvent("vehicle_found")
	} else {
		span.AddEvent("vehicle_not_found")
	}
	ipl.record(ctx, "find", start, nil)

	return slot, ok
}

func (ipl *InstrumentedParkingLot) Estimate(ctx context.Context, plate string) (Estimate, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.estimate",
		trace.WithAttributes(attribute.String("vehicle.license_plate", plate)))
	defer span.End()

	start := time.Now()
	est, err := ipl.ParkingLot.Estimate(plate)
	if err != nil {
		failSpan(span, err)
	} else {
		span.SetAttributes(
			attribute.Float64("price.quote", est.Quote),
			attribute.Float64("price.settle", est.Settle),
		)
	}
	ipl.record(ctx, "estimate", start, err)

	return est, err
}

func (ipl *InstrumentedParkingLot) Optimize(ctx context.Context) OptimizationReport {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.optimize")
	defer span.End()

	start := time.Now()
	report := ipl.ParkingLot.Optimize()

	span.SetAttributes(
		attribute.Int("optimize.candidates", report.Candidates),
		attribute.Int("optimize.moves", len(report.Moves)),
	)
	for _, m := range report.Moves {
		span.AddEvent("vehicle_relocated", trace.WithAttributes(
			attribute.String("vehicle.license_plate", m.LicensePlate),
			attribute.Int("slot.from", m.FromSlot),
			attribute.Int("slot.to", m.ToSlot),
		))
	}
	if len(report.Moves) > 0 {
		ipl.relocations.Add(ctx, int64(len(report.Moves)))
	}
	logging.Info(ctx).
		Int("candidates", report.Candidates).
		Int("moves", len(report.Moves)).
		Msg("optimization pass finished")
	ipl.record(ctx, "optimize", start, nil)

	return report
}

func (ipl *InstrumentedParkingLot) Stats(ctx context.Context) Stats {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.stats")
	defer span.End()

	start := time.Now()
	stats := ipl.ParkingLot.Stats()
	span.SetAttributes(
		attribute.Int("lot.occupied", stats.Occupied),
		attribute.Int("lot.total_slots", stats.TotalSlots),
		attribute.Int("lot.backlog", stats.Backlog),
	)
	ipl.record(ctx, "stats", start, nil)

	return stats
}

func (ipl *InstrumentedParkingLot) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = errorStatus(err)
	}
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func vehicleAttributes(v *Vehicle) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("vehicle.license_plate", v.LicensePlate),
		attribute.String("vehicle.type", v.Type),
		attribute.Bool("vehicle.vip", v.VIP),
		attribute.Bool("vehicle.electric", v.Electric),
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func errorStatus(err error) string {
	switch {
	case errors.Is(err, ErrNotParked):
		return "not_found"
	case errors.Is(err, ErrDuplicateAdmission), errors.Is(err, ErrVehicleAlreadyEntered):
		return "conflict"
	case errors.Is(err, ErrInvalidVehicle):
		return "invalid"
	default:
		return "failed"
	}
}

func plateOf(v *Vehicle) string {
	if v == nil {
		return ""
	}
	return v.LicensePlate
}
