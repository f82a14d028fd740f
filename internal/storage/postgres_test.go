package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cart-service/internal/models"
)

// newTestPostgres opens POSTGRES_TEST_DSN and migrates the snapshot table.
// The test is skipped when the variable is unset or the server is down.
func newTestPostgres(t *testing.T, ttl time.Duration) (*PostgresStorage, *gorm.DB) {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewPostgresStorage(db, ttl)
	require.NoError(t, s.AutoMigrate())
	return s, db
}

func TestPostgresStorage_UpsertAndIndex(t *testing.T) {
	ctx := context.Background()
	s, db := newTestPostgres(t, time.Hour)

	key := "test:cart:" + uuid.NewString()
	shirt, mug := "shirt-"+uuid.NewString(), "mug-"+uuid.NewString()
	t.Cleanup(func() { db.Where("key = ?", key).Delete(&models.CartSnapshot{}) })

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, key, snapshotWith(shirt, mug)))
	keys, err := s.KeysWithProduct(ctx, shirt)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	// Second write replaces the row instead of conflicting.
	second := snapshotWith(mug)
	require.NoError(t, s.Set(ctx, key, second))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(second), string(got))

	keys, err = s.KeysWithProduct(ctx, shirt)
	require.NoError(t, err)
	assert.Empty(t, keys)
	keys, err = s.KeysWithProduct(ctx, mug)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	var snap models.CartSnapshot
	require.NoError(t, db.Where("key = ?", key).First(&snap).Error)
	require.NotNil(t, snap.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *snap.ExpiresAt, time.Minute)

	require.NoError(t, s.Remove(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStorage_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	s, db := newTestPostgres(t, 0)

	expired, live := "test:cart:"+uuid.NewString(), "test:cart:"+uuid.NewString()
	shirt := "shirt-" + uuid.NewString()
	t.Cleanup(func() { db.Where("key IN ?", []string{expired, live}).Delete(&models.CartSnapshot{}) })

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&models.CartSnapshot{
		Key:        expired,
		Data:       datatypes.JSON(snapshotWith(shirt)),
		ProductIDs: []string{shirt},
		ExpiresAt:  &past,
	}).Error)
	require.NoError(t, s.Set(ctx, live, snapshotWith(shirt)))

	_, err := s.Get(ctx, expired)
	assert.ErrorIs(t, err, ErrNotFound, "expired rows are invisible before the purge")
	keys, err := s.KeysWithProduct(ctx, shirt)
	require.NoError(t, err)
	assert.Equal(t, []string{live}, keys)

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))

	var count int64
	require.NoError(t, db.Model(&models.CartSnapshot{}).Where("key = ?", expired).Count(&count).Error)
	assert.Zero(t, count)

	_, err = s.Get(ctx, live)
	assert.NoError(t, err, "rows without expiry survive the purge")
}
