package store

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"docnotary/config"
	"docnotary/notarization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := openTestStore(t)
	first := notarization.Transaction{ID: "2-0xbbbbbb", Hash: "0xbb", FileName: "b.pdf", Status: notarization.StatusPending, Timestamp: 2, UpdatedAt: 2}
	second := notarization.Transaction{ID: "1-0xaaaaaa", Hash: "0xaa", FileName: "a.pdf", Meta: "contract", Status: notarization.StatusPending, Timestamp: 1, UpdatedAt: 1}

	// Act
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))
	second.Status = notarization.StatusConfirmed
	second.TxHash = "0xfeed"
	second.BlockNumber = 42
	second.GasUsed = 21000
	second.UpdatedAt = 5
	require.NoError(t, s.Save(ctx, second))
	loaded, err := s.Load(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, second, loaded[0])
	assert.Equal(t, first, loaded[1])
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, id := range []string{"1-a", "2-b", "3-c"} {
		require.NoError(t, s.Save(ctx, notarization.Transaction{ID: id, Status: notarization.StatusFailed, ErrorCategory: notarization.CategoryNetwork}))
	}

	require.NoError(t, s.Delete(ctx, "2-b"))
	require.NoError(t, s.Delete(ctx, "missing"))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, notarization.CategoryNetwork, loaded[0].ErrorCategory)

	require.NoError(t, s.DeleteAll(ctx))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)

	s, err := New(ctx, config.DatabaseConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(ctx, config.DatabaseConfig{Driver: "mysql"}, logger)
	assert.Error(t, err)

	s, err = New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}, logger)
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Close()
}
