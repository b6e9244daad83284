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

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("document not found")

// CompanyRepository handles company document operations
type CompanyRepository struct {
	collection *mongo.Collection
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *MongoDB) *CompanyRepository {
	return &CompanyRepository{
		collection: db.GetCollection(CollectionCompanies),
	}
}

// Create inserts a new company document
func (r *CompanyRepository) Create(ctx context.Context, company *model.Company) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if company.ID.IsZero() {
		company.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, company)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("company with name %q already exists", company.Name)
		}
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Company, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var company model.Company
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": id}).Decode(&company)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// GetByIDs retrieves companies for a set of IDs
func (r *CompanyRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Company, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctxTimeout, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch companies: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var companies []model.Company
	if err := cursor.All(ctxTimeout, &companies); err != nil {
		return nil, fmt.Errorf("failed to decode companies: %w", err)
	}

	return companies, nil
}

// List retrieves companies with filtering and pagination
func (r *CompanyRepository) List(ctx context.Context, filter bson.M, page, limit int) ([]model.Company, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count companies: %w", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list companies: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var companies []model.Company
	if err := cursor.All(ctxTimeout, &companies); err != nil {
		return nil, 0, fmt.Errorf("failed to decode companies: %w", err)
	}

	return companies, total, nil
}

// Update replaces an existing company document
func (r *CompanyRepository) Update(ctx context.Context, id primitive.ObjectID, company *model.Company) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	company.ID = id
	company.Metadata.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": id}, company)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a company document
func (r *CompanyRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// FindDueRefresh finds companies whose scheduled refresh is due
func (r *CompanyRepository) FindDueRefresh(ctx context.Context, now time.Time) ([]model.Company, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"refresh_enabled":  true,
		"next_refresh_run": bson.M{"$lte": now},
	}

	cursor, err := r.collection.Find(ctxTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find due refreshes: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var companies []model.Company
	if err := cursor.All(ctxTimeout, &companies); err != nil {
		return nil, fmt.Errorf("failed to decode companies: %w", err)
	}

	return companies, nil
}

// UpdateRefreshRun records the last refresh and the computed next one
func (r *CompanyRepository) UpdateRefreshRun(ctx context.Context, id primitive.ObjectID, lastRun, nextRun time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"last_refresh_run": lastRun,
			"next_refresh_run": nextRun,
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update refresh run: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
