package leadership

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/telemetry"
)

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unreachable Redis")
	}
}

func TestUnreachableRedisNeverLeads(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	e := newElection(client, ElectionConfig{
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   300 * time.Millisecond,
		RenewalInterval: 50 * time.Millisecond,
		InstanceID:      "test-instance",
	}, zerolog.Nop())

	e.Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	if e.IsLeader() {
		t.Fatal("instance must not lead without Redis")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSetLeaderRecordsTransitions(t *testing.T) {
	e := newElection(nil, ElectionConfig{InstanceID: "metrics-instance"}, zerolog.Nop())

	e.setLeader(true)
	e.setLeader(true)
	if !e.IsLeader() {
		t.Fatal("expected leadership")
	}
	if got := testutil.ToFloat64(telemetry.LeaderElectionStatus.WithLabelValues("metrics-instance")); got != 1 {
		t.Fatalf("status gauge=%v, want 1", got)
	}

	e.setLeader(false)
	if got := testutil.ToFloat64(telemetry.LeaderElectionChanges.WithLabelValues("metrics-instance", "acquired")); got != 1 {
		t.Fatalf("acquired transitions=%v, want 1", got)
	}
	if got := testutil.ToFloat64(telemetry.LeaderElectionChanges.WithLabelValues("metrics-instance", "lost")); got != 1 {
		t.Fatalf("lost transitions=%v, want 1", got)
	}
}

const testLease = 10 * time.Second

func newTestElection(t *testing.T, mr *miniredis.Miniredis, id string) *Election {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newElection(client, ElectionConfig{
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   testLease,
		RenewalInterval: time.Second,
		InstanceID:      id,
	}, zerolog.Nop())
}

func TestElectionAcquireRefuseAndRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	a := newTestElection(t, mr, "bakery-a")
	b := newTestElection(t, mr, "bakery-b")
	defer b.Stop()

	a.attempt(ctx)
	if !a.IsLeader() {
		t.Fatal("first instance should acquire the vacant lease")
	}
	if got, _ := mr.Get(defaultElectionKey); got != "bakery-a" {
		t.Fatalf("lease holder = %q, want bakery-a", got)
	}
	if ttl := mr.TTL(defaultElectionKey); ttl != testLease {
		t.Fatalf("lease TTL = %v, want %v", ttl, testLease)
	}

	b.attempt(ctx)
	if b.IsLeader() {
		t.Fatal("second instance must be refused while the lease is held")
	}
	leader, err := b.Leader(ctx)
	if err != nil {
		t.Fatalf("Leader: %v", err)
	}
	if leader != "bakery-a" {
		t.Fatalf("Leader = %q, want bakery-a", leader)
	}

	// Renewal restores the full lease.
	mr.SetTTL(defaultElectionKey, time.Second)
	a.attempt(ctx)
	if !a.IsLeader() {
		t.Fatal("holder should keep the lease on renewal")
	}
	if ttl := mr.TTL(defaultElectionKey); ttl != testLease {
		t.Fatalf("renewed TTL = %v, want %v", ttl, testLease)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if mr.Exists(defaultElectionKey) {
		t.Fatal("Stop should release the held lease")
	}

	b.attempt(ctx)
	if !b.IsLeader() {
		t.Fatal("second instance should acquire the released lease")
	}
}

func TestStopLeavesForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	a := newTestElection(t, mr, "bakery-a")

	a.attempt(ctx)
	if !a.IsLeader() {
		t.Fatal("expected leadership")
	}

	// The lease expired and another instance took over before a noticed.
	if err := mr.Set(defaultElectionKey, "bakery-c"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got, _ := mr.Get(defaultElectionKey); got != "bakery-c" {
		t.Fatalf("lease holder = %q, want bakery-c untouched", got)
	}
}

func TestExpiredLeaseChangesHands(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	a := newTestElection(t, mr, "bakery-a")
	b := newTestElection(t, mr, "bakery-b")
	defer a.Stop()
	defer b.Stop()

	a.attempt(ctx)
	mr.FastForward(testLease + time.Second)

	b.attempt(ctx)
	if !b.IsLeader() {
		t.Fatal("expected the expired lease to be taken over")
	}
	a.attempt(ctx)
	if a.IsLeader() {
		t.Fatal("previous holder must step down once the lease is gone")
	}
}

func TestStartCampaignsAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.InstanceID = "bakery-main"
	cfg.LeaseDuration = testLease
	cfg.RenewalInterval = 50 * time.Millisecond

	e, err := NewElection(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewElection: %v", err)
	}
	e.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for !e.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatal("instance never became leader")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if mr.Exists(defaultElectionKey) {
		t.Fatal("Stop should release the lease")
	}
}
