package client

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Raguls333/noolix-sub001/apperr"
)

// Service exposes business-level client operations.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create registers a client for an organization.
func (s *Service) Create(ctx context.Context, params CreateParams) (Client, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Company = strings.TrimSpace(params.Company)
	if err := s.validate.Struct(params); err != nil {
		return Client{}, apperr.Wrap(apperr.KindValidation, err, "invalid client")
	}
	return s.repo.Create(ctx, params)
}

// GetByID returns the live client for the given identifier.
func (s *Service) GetByID(ctx context.Context, orgID, id string) (Client, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns up to limit clients of an organization.
func (s *Service) List(ctx context.Context, orgID string, limit int) ([]Client, error) {
	return s.repo.List(ctx, orgID, limit)
}
