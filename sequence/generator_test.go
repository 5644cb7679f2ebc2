package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspeksimobil/inspector-core/cache"
	cachetest "github.com/inspeksimobil/inspector-core/cache/testing"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

// fakeSeqStore is an in-memory, thread-safe store.SequenceStore.
type fakeSeqStore struct {
	mu          sync.Mutex
	counters    map[string]int64
	checkpoints map[string]int64

	upsertErr     error
	readErr       error
	checkpointErr error
}

func newFakeSeqStore() *fakeSeqStore {
	return &fakeSeqStore{
		counters:    make(map[string]int64),
		checkpoints: make(map[string]int64),
	}
}

func seqStoreKey(scopeKey, datePrefix string) string {
	return scopeKey + "/" + datePrefix
}

func (f *fakeSeqStore) UpsertSequence(_ context.Context, scopeKey, datePrefix string) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := seqStoreKey(scopeKey, datePrefix)
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeSeqStore) ReadSequence(_ context.Context, scopeKey, datePrefix string) (int64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.counters[seqStoreKey(scopeKey, datePrefix)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (f *fakeSeqStore) CheckpointSequence(_ context.Context, scopeKey, datePrefix string, value int64) error {
	if f.checkpointErr != nil {
		return f.checkpointErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := seqStoreKey(scopeKey, datePrefix)
	if value > f.counters[key] {
		f.counters[key] = value
	}
	f.checkpoints[key] = value
	return nil
}

func (f *fakeSeqStore) checkpointed(scopeKey, datePrefix string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.checkpoints[seqStoreKey(scopeKey, datePrefix)]
	return n, ok
}

var testDate = time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)

func newTestGenerator(mock *cachetest.MockCache, st store.SequenceStore) *Generator {
	log := logger.Disabled()
	fs := cache.NewFailSoft(mock, log)
	return New(fs, cache.NewMonitor(mock, log), st, log)
}

func TestIssueNextSequentialFormatting(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(cachetest.NewMockCache(), newFakeSeqStore())

	want := []string{
		"YOG-20012025-001",
		"YOG-20012025-002",
		"YOG-20012025-003",
		"YOG-20012025-004",
		"YOG-20012025-005",
		"YOG-20012025-006",
	}
	for _, expected := range want {
		id, err := g.IssueNext(ctx, "YOG", testDate)
		require.NoError(t, err)
		assert.Equal(t, expected, id)
	}
}

func TestIssueNextNormalizesScope(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(cachetest.NewMockCache(), newFakeSeqStore())

	id, err := g.IssueNext(ctx, " yog ", testDate)
	require.NoError(t, err)
	assert.Equal(t, "YOG-20012025-001", id)
}

func TestIssueNextUncappedWidth(t *testing.T) {
	assert.Equal(t, "YOG-20012025-007", FormatID("YOG", "20012025", 7))
	assert.Equal(t, "YOG-20012025-999", FormatID("YOG", "20012025", 999))
	assert.Equal(t, "YOG-20012025-1000", FormatID("YOG", "20012025", 1000))
}

func TestIssueNextNoDuplicatesUnderConcurrency(t *testing.T) {
	for _, workers := range []int{2, 10, 100} {
		t.Run(map[int]string{2: "2workers", 10: "10workers", 100: "100workers"}[workers], func(t *testing.T) {
			ctx := context.Background()
			g := newTestGenerator(cachetest.NewMockCache(), newFakeSeqStore())

			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = make(map[string]struct{}, workers)
			)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id, err := g.IssueNext(ctx, "YOG", testDate)
					assert.NoError(t, err)
					mu.Lock()
					ids[id] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, ids, workers, "concurrent issuance must never hand out duplicates")
		})
	}
}

func TestIssueNextDurableOnlyWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache().FailEverything()
	st := newFakeSeqStore()
	g := newTestGenerator(mock, st)

	// A fully unavailable cache yields a strictly increasing, gap-free
	// sequence sourced purely from the durable store.
	for i := 1; i <= 5; i++ {
		id, err := g.IssueNext(ctx, "YOG", testDate)
		require.NoError(t, err)
		assert.Equal(t, FormatID("YOG", "20012025", int64(i)), id)
	}

	assert.Zero(t, mock.IncrementCalls(), "unhealthy cache must not be attempted")
}

func TestIssueNextSeedsCounterFromDurableFloor(t *testing.T) {
	ctx := context.Background()
	st := newFakeSeqStore()
	st.counters[seqStoreKey("YOG", "20012025")] = 41

	g := newTestGenerator(cachetest.NewMockCache(), st)

	id, err := g.IssueNext(ctx, "YOG", testDate)
	require.NoError(t, err)
	assert.Equal(t, "YOG-20012025-042", id, "cache counter must resume past the durable floor")
}

func TestIssueNextFallsBackWhenSeedReadFails(t *testing.T) {
	ctx := context.Background()
	st := newFakeSeqStore()
	st.readErr = errors.New("connection refused")

	g := newTestGenerator(cachetest.NewMockCache(), st)

	// The durable upsert still works, so issuance succeeds via fallback.
	id, err := g.IssueNext(ctx, "YOG", testDate)
	require.NoError(t, err)
	assert.Equal(t, "YOG-20012025-001", id)
}

func TestIssueNextSurfacesDurableFailure(t *testing.T) {
	ctx := context.Background()
	st := newFakeSeqStore()
	st.upsertErr = errors.New("connection refused")

	g := newTestGenerator(cachetest.NewMockCache().FailEverything(), st)

	_, err := g.IssueNext(ctx, "YOG", testDate)
	assert.ErrorIs(t, err, st.upsertErr)
}

func TestIssueNextCheckpointsEveryTenth(t *testing.T) {
	ctx := context.Background()
	st := newFakeSeqStore()
	g := newTestGenerator(cachetest.NewMockCache(), st)

	for i := 0; i < checkpointEvery; i++ {
		_, err := g.IssueNext(ctx, "YOG", testDate)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		n, ok := st.checkpointed("YOG", "20012025")
		return ok && n == checkpointEvery
	}, time.Second, 10*time.Millisecond, "10th issuance must checkpoint the counter")
}

func TestIssueNextCheckpointFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	st := newFakeSeqStore()
	st.checkpointErr = errors.New("deadlock detected")
	g := newTestGenerator(cachetest.NewMockCache(), st)

	for i := 0; i < checkpointEvery; i++ {
		id, err := g.IssueNext(ctx, "YOG", testDate)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}
}

func TestIssueNextScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	g := newTestGenerator(cachetest.NewMockCache(), newFakeSeqStore())

	yog, err := g.IssueNext(ctx, "YOG", testDate)
	require.NoError(t, err)
	smg, err := g.IssueNext(ctx, "SMG", testDate)
	require.NoError(t, err)
	nextDay, err := g.IssueNext(ctx, "YOG", testDate.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "YOG-20012025-001", yog)
	assert.Equal(t, "SMG-20012025-001", smg)
	assert.Equal(t, "YOG-21012025-001", nextDay)
}
