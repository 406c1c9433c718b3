package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bazaar/internal/service/cart/domain"
)

func newTestReaper(ledger *memLedger, store *memStore, publisher *memPublisher, lock SweepLock) *Reaper {
	return NewReaper(store, ledger, publisher, nil, nil, otel.Tracer("test"), lock, time.Hour)
}

// 过期记录被回收后库存恰好回补一次，记录消失，事件发出。
func TestSweepReapsExpiredExactlyOnce(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	// 负的租约窗口让记录一出生就过期
	record, err := store.Reserve(context.Background(), "alice", "p1", 4, -time.Minute)
	require.NoError(t, err)

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	available, err := ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available, "reaped quantity must come back to stock")

	_, err = store.FindByID(context.Background(), record.ID)
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	assert.Equal(t, 1, publisher.expiredCount())

	// 第二轮无事可做，库存不能被二次回补
	processed, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)

	available, err = ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestSweepIgnoresActiveReservations(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	_, err := store.Reserve(context.Background(), "alice", "p1", 2, testWindow)
	require.NoError(t, err)

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)

	records, err := store.ListByShopper(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 1, "a live lease must survive the sweep")
}

// 清扫和买家的显式释放撞上：谁先删掉记录谁回补，另一方是 no-op。
func TestSweepRaceWithExplicitRelease(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	record, err := store.Reserve(context.Background(), "alice", "p1", 4, -time.Minute)
	require.NoError(t, err)

	// 买家抢先释放
	released, err := store.Release(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, released)

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed, "the record is already gone, reaper must not double-restore")

	available, err := ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
	assert.Zero(t, publisher.expiredCount())
}

// 单条失败不中断整轮：其余过期记录照常回收。
func TestSweepContinuesPastFailingRecord(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	bad, err := store.Reserve(context.Background(), "alice", "p1", 2, -time.Minute)
	require.NoError(t, err)
	good, err := store.Reserve(context.Background(), "bob", "p1", 3, -time.Minute)
	require.NoError(t, err)
	store.failRelease[bad.ID] = true

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	_, err = store.FindByID(context.Background(), good.ID)
	assert.ErrorIs(t, err, domain.ErrReservationNotFound, "healthy record must be reaped")

	// 失败的那条留给下一轮
	store.failRelease[bad.ID] = false
	processed, err = reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	available, err := ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, heldLock{})

	_, err := store.Reserve(context.Background(), "alice", "p1", 2, -time.Minute)
	require.NoError(t, err)

	_, err = reaper.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrSweepLockHeld)

	records, err := store.ListByShopper(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 1, "another instance owns the sweep, nothing should change here")
}

// 启动时先清一次，补上停机期间过期的记录。
func TestStartRunsStartupSweep(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	_, err := store.Reserve(context.Background(), "alice", "p1", 5, -time.Minute)
	require.NoError(t, err)

	reaper.Start(context.Background())
	defer reaper.Stop()

	assert.Eventually(t, func() bool {
		available, err := ledger.Available(context.Background(), "p1")
		return err == nil && available == 10
	}, time.Second, 10*time.Millisecond, "startup sweep must restore stock without waiting for the ticker")
}

// renewBetweenStore 在扫描返回之后、释放之前给记录续租，
// 复现 "扫到的时候过期，删的时候已经续上" 的窗口。
type renewBetweenStore struct {
	*memStore
}

func (s *renewBetweenStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	records, err := s.memStore.FindExpired(ctx, now, limit)
	for _, record := range records {
		if _, aerr := s.memStore.Adjust(ctx, record.ID, record.Quantity, testWindow); aerr != nil {
			return nil, aerr
		}
	}
	return records, err
}

// 扫描和删除之间发生续租：释放的删除条件带着过期判断，
// 刚续过租的记录必须原样活下来，不能被回收误删。
func TestSweepSparesRenewedLease(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := NewReaper(&renewBetweenStore{memStore: store}, ledger, publisher, nil, nil,
		otel.Tracer("test"), nil, time.Hour)

	record, err := store.Reserve(context.Background(), "alice", "p1", 4, -time.Minute)
	require.NoError(t, err)

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed, "a renewed lease is not reapable")

	current, err := store.FindByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, current.Quantity)
	assert.False(t, current.IsExpired(time.Now()))

	available, err := ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, available, "stock stays reserved for the live lease")
	assert.Zero(t, publisher.expiredCount())
}

// 加购 3 件后改成 1 件再过期：回收只回补剩下的 1 件。
func TestReapAfterAdjustRestoresCurrentQuantity(t *testing.T) {
	ledger := newMemLedger()
	ledger.SetStock("p1", 10)
	store := newMemStore(ledger)
	publisher := &memPublisher{}
	reaper := newTestReaper(ledger, store, publisher, nil)

	record, err := store.Reserve(context.Background(), "alice", "p1", 3, testWindow)
	require.NoError(t, err)

	// 改成 1 件，同时把租约改到过去，制造已过期的状态
	_, err = store.Adjust(context.Background(), record.ID, 1, -time.Minute)
	require.NoError(t, err)

	available, err := ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 9, available)

	processed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	available, err = ledger.Available(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available, "only the current quantity comes back, not the original 3")
}
