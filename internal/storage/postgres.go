package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cart-service/internal/models"
)

// PostgresStorage keeps snapshots in the cart_snapshots table.
type PostgresStorage struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewPostgresStorage creates a gorm backed store. Rows get expires_at = now+ttl
// on every write; ttl <= 0 leaves them without expiry.
func NewPostgresStorage(db *gorm.DB, ttl time.Duration) *PostgresStorage {
	return &PostgresStorage{db: db, ttl: ttl}
}

func (s *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var snap models.CartSnapshot
	err := s.db.WithContext(ctx).
		Where("key = ? AND (expires_at IS NULL OR expires_at > ?)", key, time.Now()).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return []byte(snap.Data), nil
}

func (s *PostgresStorage) Set(ctx context.Context, key string, value []byte) error {
	ids, _ := productIDs(value)
	snap := models.CartSnapshot{
		Key:        key,
		Data:       datatypes.JSON(value),
		ProductIDs: pq.StringArray(ids),
	}
	if s.ttl > 0 {
		expiresAt := time.Now().Add(s.ttl)
		snap.ExpiresAt = &expiresAt
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "product_ids", "expires_at", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.CartSnapshot{}).Error; err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// KeysWithProduct uses the product_ids array column.
func (s *PostgresStorage) KeysWithProduct(ctx context.Context, productID string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&models.CartSnapshot{}).
		Where("? = ANY(product_ids)", productID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find carts with product %s: %w", productID, err)
	}
	return keys, nil
}

// PurgeExpired deletes snapshots past their expiry.
func (s *PostgresStorage) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&models.CartSnapshot{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// AutoMigrate creates or updates the snapshot table.
func (s *PostgresStorage) AutoMigrate() error {
	return s.db.AutoMigrate(&models.CartSnapshot{})
}
