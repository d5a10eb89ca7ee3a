package parking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordedTelemetry struct {
	provider *TelemetryProvider
	spans    *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
}

func newRecordedTelemetry(t *testing.T) *recordedTelemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	provider := NewLocalTelemetryProvider(spans, reader)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})
	return &recordedTelemetry{provider: provider, spans: spans, reader: reader}
}

func (rt *recordedTelemetry) spanNames() []string {
	var names []string
	for _, s := range rt.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func (rt *recordedTelemetry) metric(t *testing.T, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, rt.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Metrics{}
}

func sumFor[N int64 | float64](t *testing.T, m metricdata.Metrics, key, value string) N {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[N])
	require.True(t, ok, "metric %s is not a sum", m.Name)
	var total N
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func gaugeValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "metric %s is not a gauge", m.Name)
	require.Len(t, gauge.DataPoints, 1)
	return gauge.DataPoints[0].Value
}

func newInstrumentedTestLot(t *testing.T, rt *recordedTelemetry, slots ...*Slot) *InstrumentedParkingLot {
	t.Helper()
	lot, _ := newTestLot(t, slots...)
	ipl, err := Instrument(lot, rt.provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ipl.Close() })
	return ipl
}

func TestInstrumentedParkingLotIntegration(t *testing.T) {
	rt := newRecordedTelemetry(t)
	ipl := newInstrumentedTestLot(t, rt, regular(1, 30))
	ctx := context.Background()

	res, err := ipl.Admit(ctx, car("KA01HH1234"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeParked, res.Outcome)

	res, err = ipl.Admit(ctx, car("KA01HH9999"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, res.Outcome)

	slot, ok := ipl.FindOccupiedSlot(ctx, "KA01HH1234")
	require.True(t, ok)
	assert.Equal(t, 1, slot.ID)

	receipt, err := ipl.Release(ctx, "KA01HH1234")
	require.NoError(t, err)
	// full lot at settlement: 1h x 50 x 1.5
	assert.InDelta(t, 75.0, receipt.Amount, 0.001)
	require.NotNil(t, receipt.Drained)
	assert.Equal(t, "KA01HH9999", receipt.Drained.Vehicle.LicensePlate)

	stats := ipl.Stats(ctx)
	assert.Equal(t, 1, stats.Occupied)
	assert.Equal(t, 0, stats.Backlog)

	assert.Equal(t, []string{
		"parking_lot.admit",
		"parking_lot.admit",
		"parking_lot.find",
		"parking_lot.release",
		"parking_lot.stats",
	}, rt.spanNames())

	admissions := rt.metric(t, "parking_admissions_total")
	assert.Equal(t, int64(1), sumFor[int64](t, admissions, "outcome", "parked"))
	assert.Equal(t, int64(1), sumFor[int64](t, admissions, "outcome", "queued"))
	assert.Equal(t, int64(1), sumFor[int64](t, admissions, "outcome", "drained"))

	revenue := rt.metric(t, "parking_revenue_total")
	assert.InDelta(t, 75.0, sumFor[float64](t, revenue, "slot_category", "REGULAR"), 0.001)

	assert.Equal(t, int64(1), gaugeValue(t, rt.metric(t, "parking_slots_occupied")))
	assert.Equal(t, int64(0), gaugeValue(t, rt.metric(t, "parking_slots_available")))
	assert.Equal(t, int64(0), gaugeValue(t, rt.metric(t, "parking_backlog_length")))
}

func TestInstrumentedReleaseNotParkedMarksSpanError(t *testing.T) {
	rt := newRecordedTelemetry(t)
	ipl := newInstrumentedTestLot(t, rt, regular(1, 30))

	_, err := ipl.Release(context.Background(), "GHOST")
	require.ErrorIs(t, err, ErrNotParked)

	ended := rt.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "parking_lot.release", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	releases := rt.metric(t, "parking_releases_total")
	assert.Equal(t, int64(1), sumFor[int64](t, releases, "status", "not_found"))
}

func TestInstrumentedAdmitDuplicateIsRejected(t *testing.T) {
	rt := newRecordedTelemetry(t)
	ipl := newInstrumentedTestLot(t, rt, regular(1, 30), regular(2, 40))
	ctx := context.Background()

	_, err := ipl.Admit(ctx, car("DUP"))
	require.NoError(t, err)
	_, err = ipl.Admit(ctx, car("DUP"))
	require.ErrorIs(t, err, ErrDuplicateAdmission)

	admissions := rt.metric(t, "parking_admissions_total")
	assert.Equal(t, int64(1), sumFor[int64](t, admissions, "outcome", "rejected"))
}

func TestInstrumentedOptimizeCountsRelocations(t *testing.T) {
	rt := newRecordedTelemetry(t)
	lot, clk := newTestLot(t, regular(1, 10), regular(2, 20))
	ipl, err := Instrument(lot, rt.provider)
	require.NoError(t, err)
	defer ipl.Close()
	ctx := context.Background()

	_, err = ipl.Admit(ctx, car("A"))
	require.NoError(t, err)
	_, err = ipl.Admit(ctx, car("B"))
	require.NoError(t, err)
	clk.Add(time.Hour)
	_, err = ipl.Release(ctx, "A")
	require.NoError(t, err)

	report := ipl.Optimize(ctx)
	require.Len(t, report.Moves, 1)

	relocations := rt.metric(t, "parking_relocations_total")
	sum, ok := relocations.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestInstrumentedCloseStopsGauges(t *testing.T) {
	rt := newRecordedTelemetry(t)
	lot, _ := newTestLot(t, regular(1, 30))
	ipl, err := Instrument(lot, rt.provider)
	require.NoError(t, err)
	require.NoError(t, ipl.Close())

	var rm metricdata.ResourceMetrics
	require.NoError(t, rt.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "parking_slots_occupied" {
				gauge := m.Data.(metricdata.Gauge[int64])
				assert.Empty(t, gauge.DataPoints)
			}
		}
	}
}
