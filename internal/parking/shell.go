package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultVehicleType = "CAR"

var errNoLot = errors.New("parking lot not created")

// Shell reads one command per line and writes human-readable replies.
type Shell struct {
	lot       *InstrumentedParkingLot
	scanner   *bufio.Scanner
	out       io.Writer
	telemetry *TelemetryProvider
	opts      []Option
}

func NewShell(in io.Reader, out io.Writer, telemetry *TelemetryProvider, opts ...Option) *Shell {
	return &Shell{
		scanner:   bufio.NewScanner(in),
		out:       out,
		telemetry: telemetry,
		opts:      opts,
	}
}

// UseLot makes the shell operate on an existing lot instead of waiting for
// create_parking_lot.
func (s *Shell) UseLot(lot *InstrumentedParkingLot) {
	s.lot = lot
}

// Run processes commands until input ends, exit is read, or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")
	defer span.AddEvent("shell_ended")

	for s.scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}
	return s.scanner.Err()
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	command := parts[0]
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	var err error
	switch command {
	case "create_parking_lot":
		err = s.handleCreateParkingLot(parts)
	case "park":
		err = s.handlePark(ctx, parts)
	case "leave":
		err = s.handleLeave(ctx, parts)
	case "find", "slot_number_for_registration_number":
		err = s.handleFind(ctx, parts)
	case "status":
		err = s.handleStatus(ctx)
	case "optimize":
		err = s.handleOptimize(ctx)
	case "pricing":
		err = s.handlePricing()
	case "quote":
		err = s.handleQuote(ctx, parts)
	case "queue":
		err = s.handleQueue()
	case "help":
		s.printHelp()
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command")
		s.printf("Unknown command: %s\n", command)
	}

	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		s.printf("Error: %s\n", err)
	}
}

func (s *Shell) handleCreateParkingLot(parts []string) error {
	if len(parts) != 2 {
		return usage("create_parking_lot <capacity>")
	}

	capacity, err := strconv.Atoi(parts[1])
	if err != nil {
		return ErrInvalidCapacity
	}

	lot, err := NewInstrumentedParkingLot(capacity, s.telemetry, s.opts...)
	if err != nil {
		return err
	}
	if s.lot != nil {
		_ = s.lot.Close()
	}
	s.lot = lot

	vip, ev, regular := SlotMix(capacity)
	s.printf("Created parking lot %s with %d slots (%d VIP, %d EV charging, %d regular)\n",
		lot.ID(), capacity, vip, ev, regular)
	return nil
}

func (s *Shell) handlePark(ctx context.Context, parts []string) error {
	if s.lot == nil {
		return errNoLot
	}
	if len(parts) < 2 || len(parts) > 5 {
		return usage("park <plate> [type] [vip] [electric]")
	}

	vehicleType := defaultVehicleType
	if len(parts) > 2 {
		vehicleType = strings.ToUpper(parts[2])
	}
	isVIP, err := optionalBool(parts, 3)
	if err != nil {
		return err
	}
	isElectric, err := optionalBool(parts, 4)
	if err != nil {
		return err
	}

	result, err := s.lot.Admit(ctx, NewVehicle(parts[1], vehicleType, isVIP, isElectric))
	if err != nil {
		return err
	}

	if result.Outcome == OutcomeQueued {
		s.printf("No suitable slot available, queued at position %d\n", result.Position)
		return nil
	}
	slot := result.Ticket.Slot
	s.printf("Allocated slot number: %d (%s, %dm), ticket %s\n",
		slot.ID, slot.Category, slot.Distance, result.Ticket.ID)
	return nil
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) error {
	if s.lot == nil {
		return errNoLot
	}
	if len(parts) != 2 {
		return usage("leave <plate>")
	}

	receipt, err := s.lot.Release(ctx, parts[1])
	if err != nil {
		return err
	}

	s.printf("Slot number %d is free, charged %.2f for %.2f hours\n",
		receipt.Ticket.Slot.ID, receipt.Amount, receipt.Ticket.DurationHours(receipt.Ticket.ExitTime))
	if d := receipt.Drained; d != nil {
		s.printf("Queued vehicle %s allocated slot number: %d\n", d.Vehicle.LicensePlate, d.Slot.ID)
	}
	return nil
}

func (s *Shell) handleFind(ctx context.Context, parts []string) error {
	if s.lot == nil {
		return errNoLot
	}
	if len(parts) != 2 {
		return usage("find <plate>")
	}

	slot, ok := s.lot.FindOccupiedSlot(ctx, parts[1])
	if !ok {
		s.printf("Not found\n")
		return nil
	}
	s.printf("%d\n", slot.ID)
	return nil
}

func (s *Shell) handleStatus(ctx context.Context) error {
	if s.lot == nil {
		return errNoLot
	}

	stats := s.lot.Stats(ctx)
	s.printf("Lot %s: %d/%d occupied (%.1f%%), %d waiting, revenue %.2f, %d served\n",
		stats.LotID, stats.Occupied, stats.TotalSlots, stats.OccupancyRate*100,
		stats.Backlog, stats.Revenue, stats.VehiclesServed)

	occupied := s.lot.OccupiedSlots()
	if len(occupied) == 0 {
		s.printf("Parking lot is empty\n")
	} else {
		s.printf("Slot No.\tCategory\tDistance\tPlate\n")
		for _, slot := range occupied {
			s.printf("%d\t\t%s\t\t%d\t\t%s\n", slot.ID, slot.Category, slot.Distance, slot.Vehicle.LicensePlate)
		}
	}

	nearest := s.lot.NearestAvailable(NearestReportSize)
	if len(nearest) > 0 {
		s.printf("Nearest available:\n")
		for _, slot := range nearest {
			s.printf("  %s\n", slot.String())
		}
	}
	return nil
}

func (s *Shell) handleOptimize(ctx context.Context) error {
	if s.lot == nil {
		return errNoLot
	}

	report := s.lot.Optimize(ctx)
	for _, m := range report.Moves {
		s.printf("Moved %s from slot %d (%dm) to slot %d (%dm)\n",
			m.LicensePlate, m.FromSlot, m.FromDistance, m.ToSlot, m.ToDistance)
	}
	s.printf("Optimization complete: %d of %d candidates moved\n", len(report.Moves), report.Candidates)
	return nil
}

func (s *Shell) handlePricing() error {
	if s.lot == nil {
		return errNoLot
	}

	info := s.lot.Pricing()
	s.printf("Occupancy %.1f%%: quote multiplier %.2f, settle multiplier %.2f\n",
		info.OccupancyRate*100, info.OccupancyMultiplier, info.SettleMultiplier)
	s.printf("Peak multiplier %.2f, VIP discount %.0f%%, EV discount %.0f%%\n",
		info.PeakMultiplier, info.VIPDiscount*100, info.EVDiscount*100)
	return nil
}

func (s *Shell) handleQuote(ctx context.Context, parts []string) error {
	if s.lot == nil {
		return errNoLot
	}
	if len(parts) != 2 {
		return usage("quote <plate>")
	}

	est, err := s.lot.Estimate(ctx, parts[1])
	if err != nil {
		return err
	}

	b := est.Breakdown
	s.printf("Ticket %s: %.2f hours x %.2f = %.2f\n", est.Ticket.ID, b.Hours, b.BaseRate, b.BasePrice)
	s.printf("  time x%.2f, occupancy x%.2f, vehicle x%.2f\n",
		b.TimeMultiplier, b.OccupancyMultiplier, b.VehicleMultiplier)
	s.printf("Quote %.2f, due at exit now %.2f\n", est.Quote, est.Settle)
	return nil
}

func (s *Shell) handleQueue() error {
	if s.lot == nil {
		return errNoLot
	}

	backlog := s.lot.Backlog()
	if len(backlog) == 0 {
		s.printf("Queue is empty\n")
		return nil
	}
	for i, v := range backlog {
		s.printf("%d. %s\n", i+1, v.String())
	}
	return nil
}

func (s *Shell) printHelp() {
	s.printf(`Commands:
  create_parking_lot <capacity>
  park <plate> [type] [vip] [electric]
  leave <plate>
  find <plate>
  status
  optimize
  pricing
  quote <plate>
  queue
  exit
`)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func usage(form string) error {
	return fmt.Errorf("usage: %s", form)
}

func optionalBool(parts []string, i int) (bool, error) {
	if len(parts) <= i {
		return false, nil
	}
	b, err := strconv.ParseBool(parts[i])
	if err != nil {
		return false, fmt.Errorf("invalid flag %q: want true or false", parts[i])
	}
	return b, nil
}
