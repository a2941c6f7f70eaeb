package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/toptech5419/homebake/internal/cache"
	"github.com/toptech5419/homebake/internal/events"
	"github.com/toptech5419/homebake/internal/models"
	"github.com/toptech5419/homebake/internal/production"
	"github.com/toptech5419/homebake/internal/sales"
	"github.com/toptech5419/homebake/internal/shift"
)

func TestBuildNetsSalesAgainstProduction(t *testing.T) {
	window, err := shift.ResolveAt(shift.Morning, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	produced := []models.ProductionLog{
		{ProductName: "croissant", Quantity: 20},
		{ProductName: "croissant", Quantity: 10},
		{ProductName: "baguette", Quantity: 5},
	}
	sold := []models.SalesLog{
		{ProductName: "croissant", Quantity: 12, UnitPrice: 2},
		{ProductName: "baguette", Quantity: 7, UnitPrice: 3, DiscountAmount: 1},
		{ProductName: "muffin", Quantity: 1, UnitPrice: 1.5},
	}

	report := Build(shift.Morning, window, produced, sold)

	require.Len(t, report.Items, 3)
	assert.Equal(t, "baguette", report.Items[0].ProductName)

	baguette := report.Items[0]
	assert.Equal(t, 0, baguette.Remaining)
	assert.True(t, baguette.Oversold)
	assert.InDelta(t, 20.0, baguette.Revenue, 1e-9)

	croissant := report.Items[1]
	assert.Equal(t, 30, croissant.Produced)
	assert.Equal(t, 18, croissant.Remaining)
	assert.False(t, croissant.Oversold)

	muffin := report.Items[2]
	assert.Equal(t, 0, muffin.Produced)
	assert.True(t, muffin.Oversold)

	assert.Equal(t, 35, report.TotalProduced)
	assert.Equal(t, 20, report.TotalSold)
	assert.InDelta(t, 45.5, report.TotalRevenue, 1e-9)
	assert.Equal(t, window.StartUTC, *report.WindowStart)
	assert.Equal(t, window.EndUTC, *report.WindowEnd)
}

func newTestService(t *testing.T) (*Service, *production.Service, *sales.Service) {
	t.Helper()
	return newTestServiceWithCache(t, cache.Disabled(zerolog.Nop()))
}

func newTestServiceWithCache(t *testing.T, c *cache.Cache) (*Service, *production.Service, *sales.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.ProductionLog{}, &models.SalesLog{}))

	bus := events.NewBus()
	prod := production.NewService(db, bus, zerolog.Nop())
	sl := sales.NewService(db, bus, zerolog.Nop())
	return NewService(prod, sl, c, bus, zerolog.Nop()), prod, sl
}

func TestShiftReportForActiveWindow(t *testing.T) {
	svc, prod, sl := newTestService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC) // 17:00 local

	prod.WithClock(shift.FixedClock{At: at})
	sl.WithClock(shift.FixedClock{At: at})
	_, err := prod.Record(ctx, production.RecordRequest{ProductName: "rye", Quantity: 8, UnitPrice: 4, Shift: "night"}, events.Actor{})
	require.NoError(t, err)
	_, err = sl.Record(ctx, sales.RecordRequest{ProductName: "rye", Quantity: 3, UnitPrice: 4, Shift: "night"}, events.Actor{})
	require.NoError(t, err)

	report, err := svc.ShiftReport(ctx, shift.Night, shift.CivilFromUTC(at.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, report.Cleared)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 5, report.Items[0].Remaining)
	assert.InDelta(t, 12.0, report.TotalRevenue, 1e-9)
}

func TestShiftReportForClearedWindow(t *testing.T) {
	svc, _, _ := newTestService(t)

	now := shift.CivilInstant{Year: 2024, Month: time.January, Day: 1, Hour: 0, Minute: 0, Second: 0}
	report, err := svc.ShiftReport(context.Background(), shift.Morning, now)
	require.NoError(t, err)
	assert.True(t, report.Cleared)
	assert.Equal(t, shift.ClearedReason, report.Reason)
	assert.NotNil(t, report.Items)
	assert.Empty(t, report.Items)
	assert.Nil(t, report.WindowStart)
}

func TestShiftReportRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ShiftReport(context.Background(), shift.Name("brunch"), shift.CivilInstant{Year: 2024, Month: 1, Day: 1})
	assert.ErrorIs(t, err, shift.ErrInvalidArgument)

	_, err = svc.ShiftReport(context.Background(), shift.Morning, shift.CivilInstant{Year: 2023, Month: 2, Day: 29})
	assert.ErrorIs(t, err, shift.ErrInvalidArgument)
}

func TestRunInvalidationStopsWithContext(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunInvalidation(ctx)
		close(done)
	}()

	svc.bus.Publish(events.EventSalesRecorded, events.Payload{"shift": "night"})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunInvalidation did not stop")
	}
}

func TestShiftReportServedFromCacheUntilSaleRecorded(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	reportCache, err := cache.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reportCache.Close() })
	require.True(t, reportCache.IsAvailable())

	svc, prod, sl := newTestServiceWithCache(t, reportCache)
	ctx := context.Background()
	at := time.Date(2024, 3, 14, 16, 0, 0, 0, time.UTC) // 17:00 local
	now := shift.CivilFromUTC(at)
	prod.WithClock(shift.FixedClock{At: at})
	sl.WithClock(shift.FixedClock{At: at})

	sell := func(qty int) {
		t.Helper()
		_, err := sl.Record(ctx, sales.RecordRequest{ProductName: "rye", Quantity: qty, UnitPrice: 4, Shift: "night"}, events.Actor{})
		require.NoError(t, err)
	}

	_, err = prod.Record(ctx, production.RecordRequest{ProductName: "rye", Quantity: 8, UnitPrice: 4, Shift: "night"}, events.Actor{})
	require.NoError(t, err)
	sell(3)

	first, err := svc.ShiftReport(ctx, shift.Night, now)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 5, first.Items[0].Remaining)

	key := cache.ShiftReportKey("night", *first.WindowStart)
	require.True(t, mr.Exists(key))

	// Nothing invalidates yet, so the cached copy is served.
	sell(2)
	cached, err := svc.ShiftReport(ctx, shift.Night, now)
	require.NoError(t, err)
	assert.Equal(t, 5, cached.Items[0].Remaining)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	subs := svc.subscribeInvalidation()
	go func() {
		svc.runInvalidation(runCtx, subs)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	sell(1)
	require.Eventually(t, func() bool { return !mr.Exists(key) }, 2*time.Second, 10*time.Millisecond)

	rebuilt, err := svc.ShiftReport(ctx, shift.Night, now)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt.Items[0].Remaining)
	assert.Equal(t, 6, rebuilt.TotalSold)
	assert.True(t, mr.Exists(key))
}
