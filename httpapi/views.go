package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/securelink"
)

type clientSnapshotResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
}

type personResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// commitmentResponse is the internal view of a commitment. Amount, Currency
// and payment term amounts are left empty for roles that may not see
// financials.
type commitmentResponse struct {
	ID                   string                   `json:"id"`
	ClientID             string                   `json:"clientId"`
	Client               clientSnapshotResponse   `json:"client"`
	Title                string                   `json:"title"`
	ScopeTitle           string                   `json:"scopeTitle"`
	ScopeDescription     string                   `json:"scopeDescription"`
	Amount               *decimal.Decimal         `json:"amount,omitempty"`
	Currency             string                   `json:"currency,omitempty"`
	PaymentTerms         []commitment.PaymentTerm `json:"paymentTerms"`
	Milestones           []commitment.Milestone   `json:"milestones"`
	Deliverables         []commitment.Deliverable `json:"deliverables"`
	Attachments          []commitment.Attachment  `json:"attachments"`
	Rules                commitment.ApprovalRules `json:"approvalRules"`
	Status               commitment.Status        `json:"status"`
	Version              int                      `json:"version"`
	ApprovalSentAt       *string                  `json:"approvalSentAt"`
	ApprovedAt           *string                  `json:"approvedAt"`
	DeliveredAt          *string                  `json:"deliveredAt"`
	AcceptedAt           *string                  `json:"acceptedAt"`
	RootCommitmentID     string                   `json:"rootCommitmentId"`
	PreviousCommitmentID *string                  `json:"previousCommitmentId"`
	ChangeRequestID      *string                  `json:"changeRequestId"`
	CreatedByUserID      string                   `json:"createdByUserId"`
	AssignedToUserID     *string                  `json:"assignedToUserId"`
	Assignee             *personResponse          `json:"assignee,omitempty"`
	CreatedAt            string                   `json:"createdAt"`
	UpdatedAt            string                   `json:"updatedAt"`
}

func newCommitmentResponse(c commitment.Commitment, role auth.Role) commitmentResponse {
	resp := commitmentResponse{
		ID:       c.ID,
		ClientID: c.ClientID,
		Client: clientSnapshotResponse{
			Name:    c.Client.Name,
			Email:   c.Client.Email,
			Company: c.Client.Company,
		},
		Title:                c.Title,
		ScopeTitle:           c.ScopeTitle,
		ScopeDescription:     c.ScopeDescription,
		PaymentTerms:         nonNil(c.PaymentTerms),
		Milestones:           nonNil(c.Milestones),
		Deliverables:         nonNil(c.Deliverables),
		Attachments:          nonNil(c.Attachments),
		Rules:                c.Rules,
		Status:               c.Status,
		Version:              c.Version,
		ApprovalSentAt:       formatTime(c.ApprovalSentAt),
		ApprovedAt:           formatTime(c.ApprovedAt),
		DeliveredAt:          formatTime(c.DeliveredAt),
		AcceptedAt:           formatTime(c.AcceptedAt),
		RootCommitmentID:     c.RootCommitmentID,
		PreviousCommitmentID: c.PreviousCommitmentID,
		ChangeRequestID:      c.ChangeRequestID,
		CreatedByUserID:      c.CreatedByUserID,
		AssignedToUserID:     c.AssignedToUserID,
		CreatedAt:            c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            c.UpdatedAt.Format(time.RFC3339),
	}
	if role.CanViewFinancials() {
		amount := c.Amount
		resp.Amount = &amount
		resp.Currency = c.Currency
		return resp
	}

	terms := make([]commitment.PaymentTerm, len(c.PaymentTerms))
	for i, t := range c.PaymentTerms {
		t.Amount = nil
		terms[i] = t
	}
	resp.PaymentTerms = terms
	return resp
}

func newDetailResponse(d commitment.Detail, role auth.Role) commitmentResponse {
	resp := newCommitmentResponse(d.Commitment, role)
	if d.Assignee != nil {
		resp.Assignee = &personResponse{ID: d.Assignee.ID, Name: d.Assignee.Name, Email: d.Assignee.Email}
	}
	return resp
}

func newCommitmentList(cs []commitment.Commitment, role auth.Role) []commitmentResponse {
	out := make([]commitmentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, newCommitmentResponse(c, role))
	}
	return out
}

// publicCommitmentResponse is what an unauthenticated client sees through a
// link: the agreed terms without internal bookkeeping.
type publicCommitmentResponse struct {
	ID               string                   `json:"id"`
	Client           clientSnapshotResponse   `json:"client"`
	Title            string                   `json:"title"`
	ScopeTitle       string                   `json:"scopeTitle"`
	ScopeDescription string                   `json:"scopeDescription"`
	Amount           decimal.Decimal          `json:"amount"`
	Currency         string                   `json:"currency"`
	PaymentTerms     []commitment.PaymentTerm `json:"paymentTerms"`
	Milestones       []commitment.Milestone   `json:"milestones"`
	Deliverables     []commitment.Deliverable `json:"deliverables"`
	Attachments      []commitment.Attachment  `json:"attachments"`
	Status           commitment.Status        `json:"status"`
	Version          int                      `json:"version"`
}

func newPublicCommitmentResponse(c commitment.Commitment) publicCommitmentResponse {
	return publicCommitmentResponse{
		ID: c.ID,
		Client: clientSnapshotResponse{
			Name:    c.Client.Name,
			Email:   c.Client.Email,
			Company: c.Client.Company,
		},
		Title:            c.Title,
		ScopeTitle:       c.ScopeTitle,
		ScopeDescription: c.ScopeDescription,
		Amount:           c.Amount,
		Currency:         c.Currency,
		PaymentTerms:     nonNil(c.PaymentTerms),
		Milestones:       nonNil(c.Milestones),
		Deliverables:     nonNil(c.Deliverables),
		Attachments:      nonNil(c.Attachments),
		Status:           c.Status,
		Version:          c.Version,
	}
}

type linkPreviewResponse struct {
	Purpose    securelink.Purpose       `json:"purpose"`
	ExpiresAt  string                   `json:"expiresAt"`
	Commitment publicCommitmentResponse `json:"commitment"`
}

type linkResultResponse struct {
	URL        string             `json:"url"`
	Commitment commitmentResponse `json:"commitment"`
}

type actorResponse struct {
	Type   audit.ActorType `json:"type"`
	UserID string          `json:"userId,omitempty"`
	Name   string          `json:"name,omitempty"`
	Email  string          `json:"email,omitempty"`
}

func newActorResponse(a audit.Actor) actorResponse {
	switch v := a.(type) {
	case audit.UserActor:
		return actorResponse{Type: audit.ActorUser, UserID: v.UserID}
	case audit.ClientActor:
		return actorResponse{Type: audit.ActorClient, Name: v.Name, Email: v.Email}
	default:
		return actorResponse{}
	}
}

type eventResponse struct {
	ID                string          `json:"id"`
	CommitmentID      string          `json:"commitmentId"`
	CommitmentVersion int             `json:"commitmentVersion"`
	Type              audit.EventType `json:"type"`
	Actor             actorResponse   `json:"actor"`
	Message           string          `json:"message"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         string          `json:"createdAt"`
}

func newEventList(events []audit.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:                e.ID,
			CommitmentID:      e.CommitmentID,
			CommitmentVersion: e.CommitmentVersion,
			Type:              e.Type,
			Actor:             newActorResponse(e.Actor),
			Message:           e.Message,
			Metadata:          e.Metadata,
			CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

type changeRequestResponse struct {
	ID                string                         `json:"id"`
	CommitmentID      string                         `json:"commitmentId"`
	CommitmentVersion int                            `json:"commitmentVersion"`
	Reason            string                         `json:"reason"`
	Status            commitment.ChangeRequestStatus `json:"status"`
	PreviousStatus    commitment.Status              `json:"previousStatus"`
	RequestedBy       actorResponse                  `json:"requestedBy"`
	ResolvedAt        *string                        `json:"resolvedAt"`
	ResolutionNote    *string                        `json:"resolutionNote"`
	CreatedVersionID  *string                        `json:"createdVersionId"`
	CreatedAt         string                         `json:"createdAt"`
}

func newChangeRequestResponse(cr commitment.ChangeRequest) changeRequestResponse {
	return changeRequestResponse{
		ID:                cr.ID,
		CommitmentID:      cr.CommitmentID,
		CommitmentVersion: cr.CommitmentVersion,
		Reason:            cr.Reason,
		Status:            cr.Status,
		PreviousStatus:    cr.PreviousStatus,
		RequestedBy:       newActorResponse(cr.RequestedBy),
		ResolvedAt:        formatTime(cr.ResolvedAt),
		ResolutionNote:    cr.ResolutionNote,
		CreatedVersionID:  cr.CreatedVersionID,
		CreatedAt:         cr.CreatedAt.Format(time.RFC3339),
	}
}

type linkResponse struct {
	ID                string             `json:"id"`
	Purpose           securelink.Purpose `json:"purpose"`
	CommitmentVersion int                `json:"commitmentVersion"`
	ExpiresAt         string             `json:"expiresAt"`
	UsedAt            *string            `json:"usedAt"`
}

type proofResponse struct {
	Commitment     commitmentResponse `json:"commitment"`
	Events         []eventResponse    `json:"events"`
	AcceptanceLink *linkResponse      `json:"acceptanceLink"`
}

func newProofResponse(p commitment.Proof, role auth.Role) proofResponse {
	resp := proofResponse{
		Commitment: newCommitmentResponse(p.Commitment, role),
		Events:     newEventList(p.Events),
	}
	if l := p.AcceptanceLink; l != nil {
		resp.AcceptanceLink = &linkResponse{
			ID:                l.ID,
			Purpose:           l.Purpose,
			CommitmentVersion: l.CommitmentVersion,
			ExpiresAt:         l.ExpiresAt.Format(time.RFC3339),
			UsedAt:            formatTime(l.UsedAt),
		}
	}
	return resp
}

type clientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func newClientResponse(c client.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Company:   c.Company,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
