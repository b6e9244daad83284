package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// LockRepository handles distributed locks for scheduled refresh runs
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionRefreshLocks),
	}
}

// AcquireLock attempts to acquire a refresh lock for a company. Returns true
// if the lock was acquired, false if another instance holds an unexpired
// lock. Uses FindOneAndUpdate with upsert for atomic acquisition.
func (r *LockRepository) AcquireLock(ctx context.Context, companyID primitive.ObjectID, instanceID string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	// Match only when no lock exists for this company or the existing one
	// has expired
	filter := bson.M{
		"company_id": companyID,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"expires_at": bson.M{"$exists": false}},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"company_id": companyID,
			"locked_by":  instanceID,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.RefreshLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
			// Lock is held by another instance and has not expired
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if result.LockedBy != instanceID {
		return false, nil
	}

	slog.Debug("Successfully acquired refresh lock",
		"company_id", companyID.Hex(),
		"instance_id", instanceID,
		"expires_at", expiresAt,
	)

	return true, nil
}

// ReleaseLock releases a lock, but only if owned by the given instance
func (r *LockRepository) ReleaseLock(ctx context.Context, companyID primitive.ObjectID, instanceID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"company_id": companyID,
		"locked_by":  instanceID,
	}

	result, err := r.collection.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Successfully released refresh lock",
			"company_id", companyID.Hex(),
			"instance_id", instanceID,
		)
	}

	return nil
}

// ReleaseAllLocks releases every lock owned by the given instance, typically
// during graceful shutdown
func (r *LockRepository) ReleaseAllLocks(ctx context.Context, instanceID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"locked_by": instanceID,
	}

	result, err := r.collection.DeleteMany(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released all refresh locks during shutdown",
			"instance_id", instanceID,
			"count", result.DeletedCount,
		)
	}

	return nil
}

// CleanExpiredLocks removes locks whose TTL has passed, covering instances
// that crashed without releasing
func (r *LockRepository) CleanExpiredLocks(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"expires_at": bson.M{"$lt": now},
	}

	result, err := r.collection.DeleteMany(ctxTimeout, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Cleaned expired refresh locks",
			"count", result.DeletedCount,
		)
	}

	return result.DeletedCount, nil
}
