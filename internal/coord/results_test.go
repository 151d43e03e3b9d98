package coord

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
)

func testShardStore(t *testing.T, root string) *ShardStore {
	t.Helper()
	return NewShardStore(root, NewFileStore(logging.NewNop().Logger), logging.NewNop().Logger)
}

func makeResults(caseIDs ...int64) []core.Result {
	results := make([]core.Result, 0, len(caseIDs))
	for _, id := range caseIDs {
		results = append(results, core.Result{CaseID: id, Status: core.ResultPassed})
	}
	return results
}

func TestShardStore_AggregateMergesAllShards(t *testing.T) {
	root := t.TempDir()
	s := testShardStore(t, root)

	shards := [][]core.Result{
		makeResults(1, 2, 3),
		makeResults(10, 11),
		makeResults(20, 21, 22, 23),
	}
	for _, results := range shards {
		require.NoError(t, s.StoreShard(core.NewWorkerIdentity(), results))
	}

	merged, err := s.Aggregate()
	require.NoError(t, err)
	assert.Len(t, merged, 9, "aggregate must return the sum of all shard sizes")
}

func TestShardStore_AggregatePreservesPerShardOrder(t *testing.T) {
	root := t.TempDir()
	s := testShardStore(t, root)

	identity := core.NewWorkerIdentity()
	require.NoError(t, s.StoreShard(identity, makeResults(5, 3, 9, 1)))

	merged, err := s.Aggregate()
	require.NoError(t, err)
	require.Len(t, merged, 4)
	assert.Equal(t, []int64{5, 3, 9, 1},
		[]int64{merged[0].CaseID, merged[1].CaseID, merged[2].CaseID, merged[3].CaseID})
}

func TestShardStore_StoreShardIsIdempotentOverwrite(t *testing.T) {
	root := t.TempDir()
	s := testShardStore(t, root)

	identity := core.NewWorkerIdentity()
	require.NoError(t, s.StoreShard(identity, makeResults(1, 2)))
	require.NoError(t, s.StoreShard(identity, makeResults(7)))

	merged, err := s.Aggregate()
	require.NoError(t, err)
	require.Len(t, merged, 1, "second store must replace, not append")
	assert.Equal(t, int64(7), merged[0].CaseID)
}

func TestShardStore_AggregateSkipsCorruptShard(t *testing.T) {
	root := t.TempDir()
	s := testShardStore(t, root)

	require.NoError(t, s.StoreShard(core.NewWorkerIdentity(), makeResults(1, 2)))

	bad := filepath.Join(root, "results", "broken.results")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))

	merged, err := s.Aggregate()
	require.NoError(t, err, "a corrupt shard must not fail aggregation")
	assert.Len(t, merged, 2)
}

func TestShardStore_AggregateWithNoShards(t *testing.T) {
	s := testShardStore(t, t.TempDir())

	_, err := s.Aggregate()
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatProtocol))

	var domErr *core.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, core.CodeNoShards, domErr.Code)
}

func TestShardStore_Count(t *testing.T) {
	root := t.TempDir()
	s := testShardStore(t, root)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.StoreShard(core.NewWorkerIdentity(), makeResults(1)))
	require.NoError(t, s.StoreShard(core.NewWorkerIdentity(), makeResults(2)))

	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
