package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/content/be/repo"
	"github.com/homebasehq/homebase/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound = errors.New("content not found")
	ErrConflict = errors.New("content conflict")
)

// PricingPlan mirrors a stored pricing plan.
type PricingPlan = persistence.PricingPlan

// NavbarItem mirrors a stored navbar item.
type NavbarItem = persistence.NavbarItem

// PolicySection mirrors a stored policy section.
type PolicySection = persistence.PolicySection

// PlanInput carries a full pricing plan payload. A nil ID creates a new plan.
type PlanInput struct {
	PlanID       *uuid.UUID
	Name         string
	PriceMonthly float64
	Features     []string
	SortOrder    int
	Active       bool
}

// NavbarInput carries a full navbar item payload.
type NavbarInput struct {
	ItemID    *uuid.UUID
	Label     string
	Href      string
	SortOrder int
	Visible   bool
}

// PolicyInput carries a full policy section payload.
type PolicyInput struct {
	SectionID *uuid.UUID
	Slug      string
	Title     string
	Body      string
	SortOrder int
}

// Service exposes site content operations. Reads serve the public site, so
// they filter out inactive and hidden records unless includeAll is set by an
// admin caller.
type Service interface {
	UpsertPlan(ctx context.Context, input PlanInput) (PricingPlan, error)
	ListPlans(ctx context.Context, includeAll bool) ([]PricingPlan, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error

	UpsertNavbarItem(ctx context.Context, input NavbarInput) (NavbarItem, error)
	ListNavbarItems(ctx context.Context, includeAll bool) ([]NavbarItem, error)
	DeleteNavbarItem(ctx context.Context, id uuid.UUID) error

	UpsertPolicy(ctx context.Context, input PolicyInput) (PolicySection, error)
	GetPolicy(ctx context.Context, slug string) (PolicySection, error)
	ListPolicies(ctx context.Context) ([]PolicySection, error)
	DeletePolicy(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo domainrepo.Repository
}

// New builds a content Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("content repo is required")
	}
	return &service{repo: repo}
}

func (s *service) UpsertPlan(ctx context.Context, input PlanInput) (PricingPlan, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Name) == "" {
		addFieldError(fieldErrors, "name", "name is required")
	}
	if input.PriceMonthly < 0 {
		addFieldError(fieldErrors, "priceMonthly", "priceMonthly must not be negative")
	}
	if len(fieldErrors) > 0 {
		return PricingPlan{}, &ValidationError{Fields: fieldErrors}
	}

	features, err := json.Marshal(input.Features)
	if err != nil {
		return PricingPlan{}, err
	}

	plan, err := s.repo.UpsertPricingPlan(ctx, persistence.UpsertPricingPlanParams{
		PlanID:       orNewID(input.PlanID),
		Name:         input.Name,
		PriceMonthly: input.PriceMonthly,
		Features:     features,
		SortOrder:    input.SortOrder,
		Active:       input.Active,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrContentConflict) {
			return PricingPlan{}, ErrConflict
		}
		return PricingPlan{}, err
	}
	return plan, nil
}

func (s *service) ListPlans(ctx context.Context, includeAll bool) ([]PricingPlan, error) {
	return s.repo.ListPricingPlans(ctx, !includeAll)
}

func (s *service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return translateDelete(s.repo.DeletePricingPlan(ctx, id))
}

func (s *service) UpsertNavbarItem(ctx context.Context, input NavbarInput) (NavbarItem, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Label) == "" {
		addFieldError(fieldErrors, "label", "label is required")
	}
	if strings.TrimSpace(input.Href) == "" {
		addFieldError(fieldErrors, "href", "href is required")
	}
	if len(fieldErrors) > 0 {
		return NavbarItem{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.UpsertNavbarItem(ctx, persistence.UpsertNavbarItemParams{
		ItemID:    orNewID(input.ItemID),
		Label:     input.Label,
		Href:      input.Href,
		SortOrder: input.SortOrder,
		Visible:   input.Visible,
	})
}

func (s *service) ListNavbarItems(ctx context.Context, includeAll bool) ([]NavbarItem, error) {
	return s.repo.ListNavbarItems(ctx, !includeAll)
}

func (s *service) DeleteNavbarItem(ctx context.Context, id uuid.UUID) error {
	return translateDelete(s.repo.DeleteNavbarItem(ctx, id))
}

func (s *service) UpsertPolicy(ctx context.Context, input PolicyInput) (PolicySection, error) {
	fieldErrors := FieldErrors{}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		addFieldError(fieldErrors, "slug", "slug is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		addFieldError(fieldErrors, "title", "title is required")
	}
	if len(fieldErrors) > 0 {
		return PolicySection{}, &ValidationError{Fields: fieldErrors}
	}

	section, err := s.repo.UpsertPolicySection(ctx, persistence.UpsertPolicySectionParams{
		SectionID: orNewID(input.SectionID),
		Slug:      slug,
		Title:     input.Title,
		Body:      input.Body,
		SortOrder: input.SortOrder,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrContentConflict) {
			return PolicySection{}, ErrConflict
		}
		return PolicySection{}, err
	}
	return section, nil
}

func (s *service) GetPolicy(ctx context.Context, slug string) (PolicySection, error) {
	section, err := s.repo.GetPolicySection(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, persistence.ErrContentNotFound) {
			return PolicySection{}, ErrNotFound
		}
		return PolicySection{}, err
	}
	return section, nil
}

func (s *service) ListPolicies(ctx context.Context) ([]PolicySection, error) {
	return s.repo.ListPolicySections(ctx)
}

func (s *service) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	return translateDelete(s.repo.DeletePolicySection(ctx, id))
}

func orNewID(id *uuid.UUID) uuid.UUID {
	if id != nil && *id != uuid.Nil {
		return *id
	}
	return uuid.New()
}

func translateDelete(err error) error {
	if errors.Is(err, persistence.ErrContentNotFound) {
		return ErrNotFound
	}
	return err
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
