package server

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "smart_parking"

// lotCollector reads the current lot at scrape time. It reports nothing
// until a lot exists.
type lotCollector struct {
	handler *Handler

	totalSlots *prometheus.Desc
	occupied   *prometheus.Desc
	available  *prometheus.Desc
	backlog    *prometheus.Desc
	occupancy  *prometheus.Desc
	revenue    *prometheus.Desc
	served     *prometheus.Desc
}

func newLotCollector(handler *Handler) *lotCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, []string{"lot_id"}, nil)
	}
	return &lotCollector{
		handler:    handler,
		totalSlots: desc("slots_total", "Slots in the lot."),
		occupied:   desc("slots_occupied", "Occupied slots."),
		available:  desc("slots_available", "Free slots."),
		backlog:    desc("backlog_length", "Vehicles waiting for a slot."),
		occupancy:  desc("occupancy_ratio", "Occupied slots over total slots."),
		revenue:    desc("revenue_total", "Revenue settled so far."),
		served:     desc("vehicles_served_total", "Vehicles released so far."),
	}
}

func (c *lotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalSlots
	ch <- c.occupied
	ch <- c.available
	ch <- c.backlog
	ch <- c.occupancy
	ch <- c.revenue
	ch <- c.served
}

func (c *lotCollector) Collect(ch chan<- prometheus.Metric) {
	lot := c.handler.Lot()
	if lot == nil {
		return
	}

	// untraced Stats; scrapes emit no spans
	stats := lot.ParkingLot.Stats()
	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, stats.LotID)
	}
	counter := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v, stats.LotID)
	}

	gauge(c.totalSlots, float64(stats.TotalSlots))
	gauge(c.occupied, float64(stats.Occupied))
	gauge(c.available, float64(stats.Available))
	gauge(c.backlog, float64(stats.Backlog))
	gauge(c.occupancy, stats.OccupancyRate)
	counter(c.revenue, stats.Revenue)
	counter(c.served, float64(stats.VehiclesServed))
}
