package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Company represents a prospect company document
type Company struct {
	ID           primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	Name         string                 `json:"name" bson:"name"`
	Website      string                 `json:"website,omitempty" bson:"website,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty" bson:"custom_fields,omitempty"`
	Metadata     Metadata               `json:"metadata" bson:"metadata"`

	// Periodic program re-analysis
	RefreshSchedule string    `json:"refresh_schedule,omitempty" bson:"refresh_schedule,omitempty"`
	RefreshEnabled  bool      `json:"refresh_enabled" bson:"refresh_enabled"`
	LastRefreshRun  time.Time `json:"last_refresh_run,omitempty" bson:"last_refresh_run,omitempty"`
	NextRefreshRun  time.Time `json:"next_refresh_run,omitempty" bson:"next_refresh_run,omitempty"`
}

// Metadata represents common metadata fields
type Metadata struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	Tags      []string  `json:"tags,omitempty" bson:"tags,omitempty"`
}

// CronParser is the parser used for refresh schedule expressions
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate validates the company document
func (c *Company) Validate() error {
	if c.Name == "" {
		return errors.New("company name is required")
	}

	if len(c.Name) > 255 {
		return errors.New("company name must be 255 characters or less")
	}

	// Website is optional; a company without one is skipped by discovery,
	// but when present it must be a usable URL
	if c.Website != "" {
		parsedURL, err := url.Parse(normalizeWebsite(c.Website))
		if err != nil {
			return fmt.Errorf("invalid website: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return errors.New("website must start with http:// or https://")
		}
		if parsedURL.Host == "" {
			return errors.New("website must include a host")
		}
		c.Website = parsedURL.String()
	}

	// Validate refresh schedule if enabled
	if c.RefreshEnabled {
		if c.RefreshSchedule == "" {
			return errors.New("refresh_schedule is required when refresh_enabled is true")
		}

		schedule, err := CronParser.Parse(c.RefreshSchedule)
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}

		now := time.Now().UTC()
		if c.NextRefreshRun.IsZero() {
			c.NextRefreshRun = schedule.Next(now)
		}
	}

	// Set metadata timestamps
	now := time.Now().UTC()
	if c.Metadata.CreatedAt.IsZero() {
		c.Metadata.CreatedAt = now
	}
	if c.Metadata.UpdatedAt.IsZero() {
		c.Metadata.UpdatedAt = now
	}

	return nil
}

// normalizeWebsite prepends a scheme to bare domains so "acme.com" is accepted
func normalizeWebsite(website string) string {
	if strings.Contains(website, "://") {
		return website
	}
	return "https://" + website
}

// CompanyListItem represents a summary of a company for list responses
type CompanyListItem struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Website         string    `json:"website,omitempty"`
	RefreshEnabled  bool      `json:"refresh_enabled"`
	RefreshSchedule string    `json:"refresh_schedule,omitempty"`
	NextRefreshRun  time.Time `json:"next_refresh_run,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Tags            []string  `json:"tags,omitempty"`
}

// ToListItem converts Company to CompanyListItem
func (c *Company) ToListItem() CompanyListItem {
	return CompanyListItem{
		ID:              c.ID.Hex(),
		Name:            c.Name,
		Website:         c.Website,
		RefreshEnabled:  c.RefreshEnabled,
		RefreshSchedule: c.RefreshSchedule,
		NextRefreshRun:  c.NextRefreshRun,
		CreatedAt:       c.Metadata.CreatedAt,
		UpdatedAt:       c.Metadata.UpdatedAt,
		Tags:            c.Metadata.Tags,
	}
}
