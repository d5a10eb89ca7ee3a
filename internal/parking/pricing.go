package parking

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinBillableHours = 1.0

	PeakMultiplier = 1.5
	VIPDiscount    = 0.20
	EVDiscount     = 0.10

	MinCharge    = 20.0
	MaxCharge    = 500.0
	MaxVIPCharge = 800.0
)

// PriceCalculator holds the two pricing formulas of the lot.
//
// Quote is the full multi-factor price shown to drivers: time of day,
// occupancy, vehicle discounts, then clamped. Settle is what Release
// actually charges: occupancy surcharge and the VIP discount only, never
// clamped.
type PriceCalculator struct{}

type PriceBreakdown struct {
	Hours               float64 `json:"hours"`
	BaseRate            float64 `json:"base_rate"`
	BasePrice           float64 `json:"base_price"`
	Peak                bool    `json:"peak"`
	TimeMultiplier      float64 `json:"time_multiplier"`
	OccupancyRate       float64 `json:"occupancy_rate"`
	OccupancyMultiplier float64 `json:"occupancy_multiplier"`
	VehicleMultiplier   float64 `json:"vehicle_multiplier"`
	Unclamped           float64 `json:"unclamped"`
	Final               float64 `json:"final"`
}

type PricingInfo struct {
	OccupancyRate       float64 `json:"occupancy_rate"`
	OccupancyMultiplier float64 `json:"occupancy_multiplier"`
	SettleMultiplier    float64 `json:"settle_multiplier"`
	PeakMultiplier      float64 `json:"peak_multiplier"`
	VIPDiscount         float64 `json:"vip_discount"`
	EVDiscount          float64 `json:"ev_discount"`
}

func BillableHours(ticket *Ticket, now time.Time) float64 {
	return max(ticket.DurationHours(now), MinBillableHours)
}

// IsPeak reports whether t falls in the morning [8,10) or evening [17,20)
// rush, in t's own location.
func IsPeak(t time.Time) bool {
	h := t.Hour()
	return (h >= 8 && h < 10) || (h >= 17 && h < 20)
}

func TimeOfDayMultiplier(entry time.Time) float64 {
	if IsPeak(entry) {
		return PeakMultiplier
	}
	return 1.0
}

func QuoteOccupancyMultiplier(occupancy float64) float64 {
	switch {
	case occupancy > 0.8:
		return 1.4
	case occupancy > 0.6:
		return 1.2
	case occupancy < 0.3:
		return 0.8
	default:
		return 1.0
	}
}

func SettleOccupancyMultiplier(occupancy float64) float64 {
	switch {
	case occupancy > 0.8:
		return 1.5
	case occupancy > 0.6:
		return 1.2
	default:
		return 1.0
	}
}

// VehicleMultiplier composes the VIP and EV discounts multiplicatively.
func VehicleMultiplier(vehicle *Vehicle) float64 {
	m := 1.0
	if vehicle.VIP {
		m *= 1 - VIPDiscount
	}
	if vehicle.Electric {
		m *= 1 - EVDiscount
	}
	return m
}

// RoundCents rounds half up to two decimal places.
func RoundCents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

func clampCharge(amount float64, vehicle *Vehicle) float64 {
	ceiling := MaxCharge
	if vehicle.VIP {
		ceiling = MaxVIPCharge
	}
	switch {
	case amount < MinCharge:
		return MinCharge
	case amount > ceiling:
		return ceiling
	default:
		return amount
	}
}

func (pc PriceCalculator) Breakdown(ticket *Ticket, occupancy float64, now time.Time) PriceBreakdown {
	hours := BillableHours(ticket, now)
	b := PriceBreakdown{
		Hours:               hours,
		BaseRate:            ticket.Slot.BaseRate,
		BasePrice:           ticket.BasePrice(now),
		Peak:                IsPeak(ticket.EntryTime),
		TimeMultiplier:      TimeOfDayMultiplier(ticket.EntryTime),
		OccupancyRate:       occupancy,
		OccupancyMultiplier: QuoteOccupancyMultiplier(occupancy),
		VehicleMultiplier:   VehicleMultiplier(ticket.Vehicle),
	}
	b.Unclamped = b.BasePrice * b.TimeMultiplier * b.OccupancyMultiplier * b.VehicleMultiplier
	b.Final = clampCharge(RoundCents(b.Unclamped), ticket.Vehicle)
	return b
}

// Quote is the full, clamped price for the ticket as of now.
func (pc PriceCalculator) Quote(ticket *Ticket, occupancy float64, now time.Time) float64 {
	return pc.Breakdown(ticket, occupancy, now).Final
}

// Settle is the reduced, unclamped price charged at release.
func (pc PriceCalculator) Settle(ticket *Ticket, occupancy float64, now time.Time) float64 {
	multiplier := SettleOccupancyMultiplier(occupancy)
	if ticket.Vehicle.VIP {
		multiplier *= 1 - VIPDiscount
	}
	return RoundCents(ticket.BasePrice(now) * multiplier)
}

func (pc PriceCalculator) CurrentPricing(occupancy float64) PricingInfo {
	return PricingInfo{
		OccupancyRate:       occupancy,
		OccupancyMultiplier: QuoteOccupancyMultiplier(occupancy),
		SettleMultiplier:    SettleOccupancyMultiplier(occupancy),
		PeakMultiplier:      PeakMultiplier,
		VIPDiscount:         VIPDiscount,
		EVDiscount:          EVDiscount,
	}
}
