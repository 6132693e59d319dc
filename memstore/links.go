package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// Links implements securelink.Repository. Consume checks and marks a link
// under the store lock, so concurrent consumers see a single winner.
type Links struct{ s *Store }

func (r *Links) Create(_ context.Context, link securelink.Link) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.links[link.TokenHash]; exists {
		return apperr.Conflict("link token collision")
	}
	r.s.links[link.TokenHash] = link
	return nil
}

func (r *Links) Consume(_ context.Context, hash string, purpose securelink.Purpose, now time.Time) (securelink.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	link, ok := r.s.links[hash]
	if !ok || link.Purpose != purpose || !link.Usable(now) {
		return securelink.Link{}, apperr.ErrLinkInvalid
	}
	used := now
	link.UsedAt = &used
	r.s.links[hash] = link
	return link, nil
}

func (r *Links) Lookup(_ context.Context, hash string, purpose securelink.Purpose, now time.Time) (securelink.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	link, ok := r.s.links[hash]
	if !ok || link.Purpose != purpose || !link.Usable(now) {
		return securelink.Link{}, apperr.ErrLinkInvalid
	}
	return link, nil
}

func (r *Links) ListForCommitment(_ context.Context, orgID, commitmentID string) ([]securelink.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []securelink.Link{}
	for _, l := range r.s.links {
		if l.OrgID == orgID && l.CommitmentID == commitmentID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
