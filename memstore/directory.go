package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/plan"
)

// Events implements audit.Repository. Events are only ever appended.
type Events struct{ s *Store }

func (r *Events) Append(_ context.Context, ev audit.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.events = append(r.s.events, ev)
	return nil
}

// ListForCommitment orders by creation time; equal times keep append order.
func (r *Events) ListForCommitment(_ context.Context, orgID, commitmentID string) ([]audit.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []audit.Event{}
	for _, ev := range r.s.events {
		if ev.OrgID == orgID && ev.CommitmentID == commitmentID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Users implements auth.Repository.
type Users struct{ s *Store }

func (r *Users) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, params.Email) {
			return auth.User{}, auth.ErrDuplicateEmail
		}
	}
	now := r.s.now().UTC()
	u := auth.User{
		ID:           newID(),
		OrgID:        params.OrgID,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r *Users) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (r *Users) GetUserInOrg(_ context.Context, orgID, userID string) (auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok || u.OrgID != orgID {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

// SetActive toggles a user's active flag.
func (r *Users) SetActive(userID string, active bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u, ok := r.s.users[userID]; ok {
		u.Active = active
		r.s.users[userID] = u
	}
}

// Clients implements client.Repository.
type Clients struct{ s *Store }

func (r *Clients) Create(_ context.Context, params client.CreateParams) (client.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	c := client.Client{
		ID:        newID(),
		OrgID:     params.OrgID,
		Name:      params.Name,
		Email:     params.Email,
		Company:   params.Company,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.clients[c.ID] = c
	return c, nil
}

func (r *Clients) GetByID(_ context.Context, orgID, id string) (client.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clients[id]
	if !ok || c.OrgID != orgID || c.DeletedAt != nil {
		return client.Client{}, apperr.NotFound("client %s not found", id)
	}
	return c, nil
}

func (r *Clients) List(_ context.Context, orgID string, limit int) ([]client.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []client.Client{}
	for _, c := range r.s.clients {
		if c.OrgID == orgID && c.DeletedAt == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Rename changes a client's display fields in place.
func (r *Clients) Rename(id, name, email string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c, ok := r.s.clients[id]; ok {
		c.Name, c.Email = name, email
		c.UpdatedAt = r.s.now().UTC()
		r.s.clients[id] = c
	}
}

// Delete soft-deletes a client.
func (r *Clients) Delete(id string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c, ok := r.s.clients[id]; ok {
		now := r.s.now().UTC()
		c.DeletedAt = &now
		r.s.clients[id] = c
	}
}

// Plans implements plan.Source.
type Plans struct{ s *Store }

func (r *Plans) PlanFor(_ context.Context, orgID string) (plan.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.plans[orgID]
	if !ok {
		return "", apperr.NotFound("organization %s not found", orgID)
	}
	return p, nil
}

func (r *Plans) SetPlan(_ context.Context, orgID string, p plan.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.plans[orgID] = p
	return nil
}

// CreateOrganization registers a new organization on plan p. Names are not
// kept.
func (r *Plans) CreateOrganization(_ context.Context, _ string, p plan.Plan) (string, error) {
	if !p.Valid() {
		return "", apperr.New(apperr.KindValidation, "unknown plan %q", p)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id := newID()
	r.s.plans[id] = p
	return id, nil
}
