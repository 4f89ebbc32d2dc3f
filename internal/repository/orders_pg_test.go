package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderflow/internal/config"
	"orderflow/internal/connections/database"
	"orderflow/internal/domain"
)

// testDB skips the test unless TEST_DATABASE_URL points at a Postgres instance.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.ConnectDB(ctx, config.DatabaseConfig{URL: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(ctx, db))
	require.NoError(t, database.EnsureSchema(ctx, db)) // idempotent
	return db
}

func TestOrdersPG_CreateAndGet(t *testing.T) {
	repo := NewOrdersPG(testDB(t))
	ctx := context.Background()

	id1, err := repo.CreateOrder(ctx, "Widget")
	require.NoError(t, err)
	id2, err := repo.CreateOrder(ctx, "Gadget")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	got, err := repo.GetOrder(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, domain.Order{ID: id1, ItemName: "Widget", Status: domain.StatusCreated}, got)
}

func TestOrdersPG_CreateEmptyItem(t *testing.T) {
	repo := NewOrdersPG(testDB(t))
	_, err := repo.CreateOrder(context.Background(), "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestOrdersPG_GetMissing(t *testing.T) {
	repo := NewOrdersPG(testDB(t))
	_, err := repo.GetOrder(context.Background(), -1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOrdersPG_UpdateStatus(t *testing.T) {
	repo := NewOrdersPG(testDB(t))
	ctx := context.Background()

	id, err := repo.CreateOrder(ctx, "Widget")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, id, domain.StatusProcessed))
	require.NoError(t, repo.UpdateStatus(ctx, id, domain.StatusProcessed))

	got, err := repo.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, got.Status)
}

func TestOrdersPG_UpdateStatusMissing(t *testing.T) {
	repo := NewOrdersPG(testDB(t))
	err := repo.UpdateStatus(context.Background(), -1, domain.StatusProcessed)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
