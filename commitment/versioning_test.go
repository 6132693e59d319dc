package commitment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raguls333/noolix-sub001/apperr"
)

func ptrTime() *time.Time {
	t := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &t
}

func sample() Commitment {
	return Commitment{
		ID:               "c-1",
		OrgID:            "org-1",
		ClientID:         "client-1",
		Client:           ClientSnapshot{Name: "Dana", Email: "dana@client.test"},
		Title:            "Website",
		ScopeTitle:       "Phase one",
		ScopeDescription: "Marketing site",
		Amount:           decimal.NewFromInt(50000),
		Currency:         "USD",
		PaymentTerms:     []PaymentTerm{{Text: "Upfront", Status: PaymentPending}},
		Milestones:       []Milestone{{Text: "Design", Status: MilestoneNotStarted}},
		Deliverables:     []Deliverable{{Text: "Deploy", Status: DeliverableNotStarted}},
		Rules:            DefaultRules(),
		Status:           StatusInProgress,
		Version:          3,
		RootCommitmentID: "c-0",
		ApprovalSentAt:   ptrTime(),
		ApprovedAt:       ptrTime(),
	}
}

func TestApplyPatch_DetectsMaterialChanges(t *testing.T) {
	c := sample()

	tests := []struct {
		name     string
		patch    Patch
		fields   []string
		material bool
	}{
		{"same values", Patch{Title: strPtr("Website"), Amount: decPtr("50000.0")}, nil, false},
		{"title", Patch{Title: strPtr("Web app")}, []string{"title"}, true},
		{"amount", Patch{Amount: decPtr("50001")}, []string{"amount"}, true},
		{"term text", Patch{PaymentTerms: &[]PaymentTerm{{Text: "On delivery"}}}, []string{"paymentTerms"}, true},
		{"term status", Patch{PaymentTerms: &[]PaymentTerm{{Text: "Upfront", Status: PaymentPaid}}}, []string{"paymentTerms"}, false},
		{"milestone status", Patch{Milestones: &[]Milestone{{Text: "Design", Status: MilestoneCompleted}}}, []string{"milestones"}, false},
		{"deliverable text", Patch{Deliverables: &[]Deliverable{{Text: "Deploy v2"}}}, []string{"deliverables"}, false},
		{"attachments", Patch{Attachments: &[]Attachment{{URL: "https://files.test/a.pdf"}}}, []string{"attachments"}, false},
		{"rules", Patch{Rules: &RulesPatch{AcceptanceRequired: boolPtr(false)}}, []string{"approvalRules"}, true},
		{"rules unchanged", Patch{Rules: &RulesPatch{Approver: approverPtr(ApproverClientOnly)}}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cs, err := applyPatch(c, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, cs.fields())
			assert.Equal(t, tt.material, cs.material)
			assert.Equal(t, len(tt.fields) == 0, cs.empty())
		})
	}
}

func TestApplyPatch_RejectsUnknownApprover(t *testing.T) {
	_, _, err := applyPatch(sample(), Patch{Rules: &RulesPatch{Approver: approverPtr("NOBODY")}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApplyPatch_DoesNotAliasInput(t *testing.T) {
	c := sample()
	terms := []PaymentTerm{{Text: "On delivery"}}

	next, _, err := applyPatch(c, Patch{PaymentTerms: &terms})
	require.NoError(t, err)
	terms[0].Text = "mutated"

	assert.Equal(t, "On delivery", next.PaymentTerms[0].Text)
	assert.Equal(t, PaymentPending, next.PaymentTerms[0].Status)
	assert.Equal(t, "Upfront", c.PaymentTerms[0].Text)
}

func TestRequiresReapproval(t *testing.T) {
	material := changeSet{locked: []string{"title"}, material: true}

	c := sample()
	assert.True(t, requiresReapproval(c, material))
	assert.False(t, requiresReapproval(c, changeSet{paymentTerms: true}))

	c.ApprovalSentAt, c.ApprovedAt = nil, nil
	assert.False(t, requiresReapproval(c, material), "never shown to the client")

	c = sample()
	c.ApprovedAt = nil
	assert.True(t, requiresReapproval(c, material), "sent but not yet approved")

	c.Rules.ReApprovalOnChanges = false
	assert.False(t, requiresReapproval(c, material))
}

func TestBump(t *testing.T) {
	c := sample()
	c.DeliveredAt, c.AcceptedAt = ptrTime(), ptrTime()

	bump(&c)

	assert.Equal(t, 4, c.Version)
	assert.Equal(t, StatusAwaitingClientApproval, c.Status)
	assert.Nil(t, c.ApprovalSentAt)
	assert.Nil(t, c.ApprovedAt)
	assert.Nil(t, c.DeliveredAt)
	assert.Nil(t, c.AcceptedAt)
	assert.Equal(t, "c-1", c.ID)
}

func TestFork(t *testing.T) {
	prev := sample()
	prev.Status = StatusChangeRequestCreated
	assignee := "user-7"
	prev.AssignedToUserID = &assignee
	cr := ChangeRequest{ID: "cr-1", CommitmentID: prev.ID}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snapshot := ClientSnapshot{Name: "Dana Reyes", Email: "dana@client.test"}

	next := fork(prev, cr, "c-2", "user-1", snapshot, now)

	assert.Equal(t, "c-2", next.ID)
	assert.Equal(t, 4, next.Version)
	assert.Equal(t, StatusAwaitingClientApproval, next.Status)
	assert.Equal(t, "c-0", next.RootCommitmentID)
	assert.Equal(t, &prev.ID, next.PreviousCommitmentID)
	assert.Equal(t, &cr.ID, next.ChangeRequestID)
	assert.Equal(t, snapshot, next.Client)
	assert.Equal(t, "user-1", next.CreatedByUserID)
	assert.Equal(t, &assignee, next.AssignedToUserID)
	assert.Nil(t, next.ApprovedAt)
	assert.Nil(t, next.ApprovalSentAt)
	assert.Equal(t, prev.PaymentTerms, next.PaymentTerms)
	assert.Equal(t, now, next.CreatedAt)

	prev.RootCommitmentID = ""
	assert.Equal(t, prev.ID, fork(prev, cr, "c-2", "user-1", snapshot, now).RootCommitmentID)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func approverPtr(a Approver) *Approver { return &a }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
