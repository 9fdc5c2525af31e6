package snapshot_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/snapshot"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/watch"
)

func startMirror(t *testing.T) (*tally.Engine, *snapshot.Mirror) {
	t.Helper()

	s := memory.New()
	hub := watch.NewHub(nil)
	engine := tally.New(s, tally.WithBus(hub))
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })

	m := snapshot.New(s, hub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		return m.Version(store.CollectionSupplierInvoices) > 0
	}, time.Second, 5*time.Millisecond)

	return engine, m
}

func TestInitialLoad(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	engine := tally.New(s)
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	_, err := engine.AddClient(ctx, "Don José")
	require.NoError(t, err)
	_, err = engine.AddStockProduct(ctx, "Vacío", decimal.NewFromInt(500))
	require.NoError(t, err)

	m := snapshot.New(s, watch.NewHub(nil), nil)
	assert.Zero(t, m.Clients().Len())
	assert.Equal(t, uint64(0), m.Version(store.CollectionClients))

	require.NoError(t, m.Sync(ctx))

	assert.Equal(t, 1, m.Clients().Len())
	assert.Equal(t, "Don José", m.Clients().Records[0].Name)
	assert.Equal(t, uint64(1), m.Clients().Version)
	assert.Equal(t, 1, m.Stock().Len())

	price, ok := m.Catalog().UnitPrice("  VACÍO ")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(500)))
}

func TestMirrorFollowsChanges(t *testing.T) {
	engine, m := startMirror(t)
	ctx := context.Background()

	before := m.Clients()

	c, err := engine.AddClient(ctx, "Almacén Ana")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.Clients().Len() == 1
	}, time.Second, 5*time.Millisecond)

	// published snapshots are never modified in place
	assert.Zero(t, before.Len())
	assert.Greater(t, m.Clients().Version, before.Version)

	_, err = engine.CloseClientInvoice(ctx, invoice.ClientDraft{
		ClientID:    c.ID,
		Type:        invoice.TypePayment,
		CashPayment: decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		invs := m.ClientInvoices()
		clients := m.Clients()
		return invs.Len() == 1 && clients.Len() == 1 &&
			clients.Records[0].CurrentBalance.Equal(decimal.NewFromInt(-300))
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1000), m.ClientInvoices().Records[0].InvoiceNumber)
}

func TestObserversSeeEveryVersion(t *testing.T) {
	s := memory.New()
	m := snapshot.New(s, watch.NewHub(nil), nil)

	var mu sync.Mutex
	seen := map[string][]uint64{}
	m.Observe(func(collection string, version uint64) {
		mu.Lock()
		defer mu.Unlock()
		seen[collection] = append(seen[collection], version)
	})

	ctx := context.Background()
	require.NoError(t, m.Sync(ctx))
	require.NoError(t, m.Refresh(ctx, store.CollectionStock))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, seen[store.CollectionStock])
	assert.Equal(t, []uint64{1}, seen[store.CollectionClients])
	assert.Len(t, seen, len(store.Collections()))
}

func TestRefreshUnknownCollection(t *testing.T) {
	m := snapshot.New(memory.New(), watch.NewHub(nil), nil)
	assert.Error(t, m.Refresh(context.Background(), "coupons"))
	assert.Equal(t, uint64(0), m.Version("coupons"))
}

// slowSource holds the first ListClients call until release is closed and
// answers it with an empty, stale list.
type slowSource struct {
	*memory.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *slowSource) ListClients(ctx context.Context) ([]*client.Client, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
		return nil, nil
	}
	return s.Store.ListClients(ctx)
}

func TestSlowRefreshDoesNotReplaceNewerLoad(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, mem.PutClient(ctx, client.New("Don José")))

	src := &slowSource{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	m := snapshot.New(src, watch.NewHub(nil), nil)

	errs := make(chan error, 2)
	go func() { errs <- m.Refresh(ctx, store.CollectionClients) }()
	<-src.entered
	go func() { errs <- m.Refresh(ctx, store.CollectionClients) }()

	time.Sleep(20 * time.Millisecond)
	close(src.release)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	snap := m.Clients()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, 1, snap.Len(), "the later load is the one published")
}

func TestConcurrentRefreshesGetDistinctVersions(t *testing.T) {
	m := snapshot.New(memory.New(), watch.NewHub(nil), nil)

	var mu sync.Mutex
	var versions []uint64
	m.Observe(func(_ string, version uint64) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, version)
	})

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Refresh(context.Background(), store.CollectionStock))
		}()
	}
	wg.Wait()

	want := make([]uint64, n)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, want, versions)
	assert.Equal(t, uint64(n), m.Version(store.CollectionStock))
}
