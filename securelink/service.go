package securelink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Raguls333/noolix-sub001/apperr"
)

// DefaultTTL applies when a purpose has no configured lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// IssueParams pins a new link to one commitment version.
type IssueParams struct {
	OrgID             string
	CommitmentID      string
	CommitmentVersion int
	Purpose           Purpose
}

// Issued is returned once per link; RawToken and URL are never retrievable again.
type Issued struct {
	Link     Link
	RawToken string
	URL      string
}

// Service mints and consumes secure links.
type Service struct {
	repo        Repository
	baseURL     string
	ttl         map[Purpose]time.Duration
	idGenerator func() string
	now         func() time.Time
}

func NewService(repo Repository, publicBaseURL string) *Service {
	return &Service{
		repo:    repo,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		ttl: map[Purpose]time.Duration{
			PurposeApproval:   DefaultTTL,
			PurposeAcceptance: DefaultTTL,
		},
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithTTL(purpose Purpose, ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl[purpose] = ttl
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// Issue creates a new link record. Earlier links for the same commitment are
// left untouched.
func (s *Service) Issue(ctx context.Context, params IssueParams) (Issued, error) {
	if params.CommitmentID == "" || params.OrgID == "" {
		return Issued{}, fmt.Errorf("securelink: missing commitment scope")
	}
	if params.CommitmentVersion < 1 {
		return Issued{}, fmt.Errorf("securelink: invalid commitment version %d", params.CommitmentVersion)
	}

	raw, hash, err := NewToken()
	if err != nil {
		return Issued{}, err
	}

	now := s.now().UTC()
	link := Link{
		ID:                s.idGenerator(),
		OrgID:             params.OrgID,
		CommitmentID:      params.CommitmentID,
		CommitmentVersion: params.CommitmentVersion,
		Purpose:           params.Purpose,
		TokenHash:         hash,
		ExpiresAt:         now.Add(s.lifetime(params.Purpose)),
		CreatedAt:         now,
	}
	if err := s.repo.Create(ctx, link); err != nil {
		return Issued{}, err
	}

	linksIssued.WithLabelValues(string(params.Purpose)).Inc()
	return Issued{Link: link, RawToken: raw, URL: s.URL(params.Purpose, raw)}, nil
}

// Consume burns the link identified by raw. The caller is responsible for the
// version check; a consumed link stays consumed even when that check fails.
func (s *Service) Consume(ctx context.Context, raw string, purpose Purpose) (Link, error) {
	if strings.TrimSpace(raw) == "" {
		linkConsumptions.WithLabelValues(string(purpose), "invalid").Inc()
		return Link{}, apperr.ErrLinkInvalid
	}

	link, err := s.repo.Consume(ctx, HashToken(raw), purpose, s.now().UTC())
	switch {
	case err == nil:
		linkConsumptions.WithLabelValues(string(purpose), "consumed").Inc()
	case errors.Is(err, apperr.ErrLinkInvalid):
		linkConsumptions.WithLabelValues(string(purpose), "invalid").Inc()
	}
	return link, err
}

// Resolve returns the usable link identified by raw without consuming it.
func (s *Service) Resolve(ctx context.Context, raw string, purpose Purpose) (Link, error) {
	if strings.TrimSpace(raw) == "" {
		return Link{}, apperr.ErrLinkInvalid
	}
	return s.repo.Lookup(ctx, HashToken(raw), purpose, s.now().UTC())
}

// ListForCommitment returns every link ever issued for a commitment, oldest
// first.
func (s *Service) ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]Link, error) {
	return s.repo.ListForCommitment(ctx, orgID, commitmentID)
}

// URL renders the public address for a raw token.
func (s *Service) URL(purpose Purpose, raw string) string {
	segment := "approve"
	if purpose == PurposeAcceptance {
		segment = "accept"
	}
	return s.baseURL + "/" + segment + "/" + raw
}

func (s *Service) lifetime(purpose Purpose) time.Duration {
	if ttl, ok := s.ttl[purpose]; ok && ttl > 0 {
		return ttl
	}
	return DefaultTTL
}
