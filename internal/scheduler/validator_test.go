package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/probe"
	"github.com/MrSnakeDoc/npdstracker/internal/registry"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
)

type fakeProber struct {
	mu     sync.Mutex
	up     map[string]bool
	probed []string
	hook   func(host string)
}

func (f *fakeProber) Probe(_ context.Context, host string, _ int) (probe.Result, error) {
	f.mu.Lock()
	f.probed = append(f.probed, host)
	up := f.up[host]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(host)
	}
	if up {
		return probe.Result{Up: true, Reason: probe.ResultUp}, nil
	}
	return probe.Result{Reason: probe.ResultError}, errors.New("i/o timeout")
}

func (f *fakeProber) hosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probed...)
}

type fakeFederator struct {
	mu      sync.Mutex
	records []domain.HostRecord
	calls   int
	seen    []string
}

func (f *fakeFederator) Merge(_ context.Context, reg *registry.Registry, _ []domain.PeerTracker) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = nil
	for _, r := range reg.Snapshot() {
		f.seen = append(f.seen, r.Name)
	}
	n := 0
	for _, r := range f.records {
		if reg.Insert(r) == nil {
			n++
		}
	}
	return n
}

func (f *fakeFederator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingSaver struct {
	mu    sync.Mutex
	saves int
}

func (c *countingSaver) Save(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
}

func (c *countingSaver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func local(name string, failures int) domain.HostRecord {
	return domain.HostRecord{
		Name:           name,
		Host:           name,
		Port:           80,
		Description:    name,
		LastValidation: "Mon, 1-Jan-2024 00:00:00 GMT",
		Status:         domain.Failing(failures),
	}
}

func newTestValidator(t *testing.T, prober *fakeProber, fed *fakeFederator, peers []domain.PeerTracker) (*Validator, *state.TrackerState, *countingSaver) {
	t.Helper()
	st := state.New(state.NewSettings(20, 2, true, "secret"), peers, state.Info{})
	saver := &countingSaver{}
	v := NewValidator(st, prober, fed, saver, logger.Nop(), time.Millisecond)
	v.now = func() time.Time { return time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC) }
	return v, st, saver
}

func TestRunPassUpdatesStatus(t *testing.T) {
	prober := &fakeProber{up: map[string]bool{"up.example.org": true}}
	v, st, saver := newTestValidator(t, prober, &fakeFederator{}, nil)

	require.NoError(t, st.Registry.Insert(local("up.example.org", 2)))
	require.NoError(t, st.Registry.Insert(local("down.example.org", 0)))
	require.NoError(t, st.Registry.Insert(domain.HostRecord{Name: "shared.example.org", Host: "shared.example.org", Status: domain.FederatedUp()}))

	v.RunPass(context.Background())

	assert.ElementsMatch(t, []string{"up.example.org", "down.example.org"}, prober.hosts(), "federated records are never probed")

	up, ok := st.Registry.Get("up.example.org")
	require.True(t, ok)
	assert.Equal(t, 0, up.Status.Code())
	assert.Equal(t, "Tue, 5-Mar-2024 07:08:09 GMT", up.LastValidation)

	down, ok := st.Registry.Get("down.example.org")
	require.True(t, ok)
	assert.Equal(t, 1, down.Status.Code())
	assert.Equal(t, "Mon, 1-Jan-2024 00:00:00 GMT", down.LastValidation)

	assert.False(t, st.Registry.Contains("shared.example.org"), "federated records are purged every pass")
	assert.Equal(t, 1, saver.count())
	assert.Equal(t, "Tue, 5-Mar-2024 07:08:09 GMT", st.LastValidation())
	assert.False(t, st.ValidationInProgress())
}

func TestRunPassEvictsAfterTooManyFailures(t *testing.T) {
	prober := &fakeProber{up: map[string]bool{}}
	v, st, _ := newTestValidator(t, prober, &fakeFederator{}, nil)

	require.NoError(t, st.Registry.Insert(local("a.example.org", 0)))
	require.NoError(t, st.Registry.Insert(local("b.example.org", 2)))
	require.NoError(t, st.Registry.Insert(local("c.example.org", 1)))

	v.RunPass(context.Background())

	// tries is 2: only b went past it.
	names := []string{}
	for _, r := range st.Registry.Snapshot() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a.example.org", "c.example.org"}, names)

	v.RunPass(context.Background())
	assert.Equal(t, 1, st.Registry.Len())

	v.RunPass(context.Background())
	assert.Equal(t, 0, st.Registry.Len())
}

func TestRunPassRefreshesFederatedRecords(t *testing.T) {
	fed := &fakeFederator{records: []domain.HostRecord{
		{Name: "far.example.org", Description: "far", Status: domain.FederatedDown()},
		{Name: "mine.example.org", Description: "dup", Status: domain.FederatedUp()},
	}}
	peers := []domain.PeerTracker{{Host: "peer.example.org", Port: "3680"}}
	v, st, _ := newTestValidator(t, &fakeProber{up: map[string]bool{"mine.example.org": true}}, fed, peers)

	require.NoError(t, st.Registry.Insert(local("mine.example.org", 0)))
	require.NoError(t, st.Registry.Insert(domain.HostRecord{Name: "stale.example.org", Status: domain.FederatedUp()}))

	v.RunPass(context.Background())

	assert.Equal(t, 1, fed.callCount())
	assert.Equal(t, []string{"mine.example.org"}, fed.seen, "federated records are purged before the merge")
	assert.False(t, st.Registry.Contains("stale.example.org"))

	far, ok := st.Registry.Get("far.example.org")
	require.True(t, ok)
	assert.Equal(t, -2, far.Status.Code())

	mine, _ := st.Registry.Get("mine.example.org")
	assert.Equal(t, "mine.example.org", mine.Description, "local record survives a duplicate federated name")

	v.RunPass(context.Background())
	assert.Equal(t, 2, st.Registry.Len(), "federated records are re-imported, not doubled")
}

func TestRunPassWithoutPeersSkipsFederation(t *testing.T) {
	fed := &fakeFederator{}
	v, _, _ := newTestValidator(t, &fakeProber{}, fed, nil)

	v.RunPass(context.Background())
	assert.Equal(t, 0, fed.callCount())
}

func TestRunPassRecordRemovedWhileProbing(t *testing.T) {
	prober := &fakeProber{up: map[string]bool{"gone.example.org": true}}
	v, st, _ := newTestValidator(t, prober, &fakeFederator{}, nil)
	require.NoError(t, st.Registry.Insert(local("gone.example.org", 0)))
	require.NoError(t, st.Registry.Insert(local("kept.example.org", 0)))

	prober.hook = func(host string) {
		if host == "gone.example.org" {
			st.Registry.Remove(host)
		}
	}

	v.RunPass(context.Background())

	assert.False(t, st.Registry.Contains("gone.example.org"))
	kept, ok := st.Registry.Get("kept.example.org")
	require.True(t, ok)
	assert.Equal(t, 1, kept.Status.Code())
}

func TestValidatorStartRunsImmediatelyAndReschedules(t *testing.T) {
	v, st, saver := newTestValidator(t, &fakeProber{}, &fakeFederator{}, nil)
	st.Settings.SetVerification(5, 2) // 5ms with the test unit

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)
	defer v.Stop()

	assert.Eventually(t, func() bool { return saver.count() >= 3 }, 2*time.Second, time.Millisecond)
}

func TestValidatorTriggerQueuesOnePass(t *testing.T) {
	v, _, _ := newTestValidator(t, &fakeProber{}, &fakeFederator{}, nil)

	assert.True(t, v.Trigger())
	assert.False(t, v.Trigger(), "only one pass is queued")
}

func TestValidatorTrigger(t *testing.T) {
	v, st, saver := newTestValidator(t, &fakeProber{}, &fakeFederator{}, nil)
	st.Settings.SetVerification(60000, 2) // one minute with the test unit

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)

	assert.Eventually(t, func() bool { return saver.count() == 1 }, 2*time.Second, time.Millisecond)

	assert.True(t, v.Trigger())
	assert.Eventually(t, func() bool { return saver.count() == 2 }, 2*time.Second, time.Millisecond)

	v.Stop()
	v.Stop()
}

func TestValidatorStopsOnContextCancel(t *testing.T) {
	v, st, _ := newTestValidator(t, &fakeProber{}, &fakeFederator{}, nil)
	st.Settings.SetVerification(60000, 2)

	ctx, cancel := context.WithCancel(context.Background())
	v.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		v.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("validator did not stop")
	}
}
