package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
)

func setupTestDB(t *testing.T) (*BlockStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewBlockStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestBlockStore_LedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, path := setupTestDB(t)

	l := ledger.New(store)
	_, err := l.Append(ctx, "a-1", ledger.TxCreation, map[string]any{"action": "amendment_created", "approved": 13_000_000.0})
	require.NoError(t, err)
	_, err = l.Append(ctx, "a-1", ledger.TxExecutionUpdate, map[string]any{"paid": 8_000_000.0, "nested": map[string]any{"k": []any{1, "x"}}})
	require.NoError(t, err)
	_, err = l.Append(ctx, "a-2", ledger.TxAlert, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewBlockStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	fresh := ledger.New(reopened)
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 3, fresh.Len())
	assert.Equal(t, l.Verify().LastHash, fresh.Verify().LastHash)
	assert.Len(t, fresh.History("a-1"), 2)

	b, err := fresh.Append(ctx, "a-2", ledger.TxAlert, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.Index)
}

func TestBlockStore_DuplicateIndexFails(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestDB(t)

	b := ledger.Block{Index: 1, Timestamp: "t", AmendmentID: "a", Type: ledger.TxCreation, PreviousHash: ledger.GenesisHash, Hash: "h1"}
	require.NoError(t, store.AppendBlock(ctx, b))
	b.Hash = "h2"
	assert.Error(t, store.AppendBlock(ctx, b))
}

func TestBlockStore_IsAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestDB(t)

	require.NoError(t, store.AppendBlock(ctx, ledger.Block{Index: 1, Timestamp: "t", AmendmentID: "a", Type: ledger.TxCreation, PreviousHash: ledger.GenesisHash, Hash: "h1"}))

	_, err := store.db.Exec(`UPDATE ledger_blocks SET amendment_id = 'b'`)
	assert.Error(t, err)
	_, err = store.db.Exec(`DELETE FROM ledger_blocks`)
	assert.Error(t, err)

	blocks, err := store.Blocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "a", blocks[0].AmendmentID)
}

func TestBlockStore_Check(t *testing.T) {
	store, _ := setupTestDB(t)
	assert.NoError(t, store.Check(context.Background()))
}
