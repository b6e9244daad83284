package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// RunRepository handles pipeline run document operations
type RunRepository struct {
	collection *mongo.Collection
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *MongoDB) *RunRepository {
	return &RunRepository{
		collection: db.GetCollection(CollectionPipelineRuns),
	}
}

// Create inserts a new pipeline run document
func (r *RunRepository) Create(ctx context.Context, run *model.PipelineRun) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, run)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	return nil
}

// GetByRunID retrieves a pipeline run by its run ID
func (r *RunRepository) GetByRunID(ctx context.Context, runID string) (*model.PipelineRun, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run model.PipelineRun
	err := r.collection.FindOne(ctxTimeout, bson.M{"run_id": runID}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}

	return &run, nil
}

// Update replaces a pipeline run document, keyed by run ID
func (r *RunRepository) Update(ctx context.Context, run *model.PipelineRun) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"run_id": run.RunID}, run)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// List retrieves pipeline runs with filtering and pagination, newest first
func (r *RunRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.PipelineRun, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pipeline runs: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "started_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var runs []model.PipelineRun
	if err := cursor.All(ctxTimeout, &runs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode pipeline runs: %w", err)
	}

	return runs, total, nil
}
