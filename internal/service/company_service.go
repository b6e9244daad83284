package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/database"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// CompanyService handles company management
type CompanyService struct {
	repo *database.CompanyRepository
}

// NewCompanyService creates a new company service
func NewCompanyService(repo *database.CompanyRepository) *CompanyService {
	return &CompanyService{
		repo: repo,
	}
}

// Create creates a new company
func (s *CompanyService) Create(ctx context.Context, company *model.Company) error {
	if err := company.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.repo.Create(ctx, company)
}

// GetByID retrieves a company by ID
func (s *CompanyService) GetByID(ctx context.Context, id string) (*model.Company, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ID format: %w", err)
	}

	return s.repo.GetByID(ctx, objID)
}

// List retrieves companies with filtering
func (s *CompanyService) List(ctx context.Context, refreshEnabled *bool, tags []string, page, limit int) ([]model.CompanyListItem, int64, error) {
	filter := bson.M{}
	if refreshEnabled != nil {
		filter["refresh_enabled"] = *refreshEnabled
	}
	if len(tags) > 0 {
		filter["metadata.tags"] = bson.M{"$in": tags}
	}

	companies, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.CompanyListItem, len(companies))
	for i, company := range companies {
		items[i] = company.ToListItem()
	}

	return items, total, nil
}

// Update updates an existing company
func (s *CompanyService) Update(ctx context.Context, id string, company *model.Company) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	if err := company.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return s.repo.Update(ctx, objID, company)
}

// Delete deletes a company
func (s *CompanyService) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}

	return s.repo.Delete(ctx, objID)
}
