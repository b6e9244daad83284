package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createCompanyIndexes(ctx, db); err != nil {
		return err
	}

	if err := createPipelineRunIndexes(ctx, db); err != nil {
		return err
	}

	if err := createRefreshLockIndexes(ctx, db); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createCompanyIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionCompanies)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "website", Value: 1}},
			Options: options.Index().SetName("idx_website"),
		},
		{
			Keys:    bson.D{{Key: "metadata.tags", Value: 1}},
			Options: options.Index().SetName("idx_tags"),
		},
		{
			Keys: bson.D{
				{Key: "refresh_enabled", Value: 1},
				{Key: "next_refresh_run", Value: 1},
			},
			Options: options.Index().SetName("idx_refresh_enabled_next_run"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created companies indexes")
	return nil
}

func createPipelineRunIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionPipelineRuns)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_run_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_started_at"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "started_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_started_at"),
		},
		{
			Keys:    bson.D{{Key: "items.company_id", Value: 1}},
			Options: options.Index().SetName("idx_items_company_id"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created pipeline_runs indexes")
	return nil
}

func createRefreshLockIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionRefreshLocks)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "company_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_company_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
		{
			Keys:    bson.D{{Key: "locked_by", Value: 1}},
			Options: options.Index().SetName("idx_locked_by"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created refresh_locks indexes")
	return nil
}
