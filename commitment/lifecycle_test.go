package commitment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Raguls333/noolix-sub001/apperr"
)

func TestCanSendApprovalLink(t *testing.T) {
	tests := []struct {
		status Status
		resend bool
		want   bool
	}{
		{StatusDraft, false, true},
		{StatusInternalReview, false, true},
		{StatusAwaitingClientApproval, false, false},
		{StatusAwaitingClientApproval, true, true},
		{StatusInProgress, true, false},
		{StatusChangeRequestCreated, true, false},
		{StatusClosed, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canSendApprovalLink(tt.status, tt.resend), "%s resend=%v", tt.status, tt.resend)
	}
}

func TestCanSendAcceptanceLink(t *testing.T) {
	c := Commitment{Status: StatusDelivered, Rules: DefaultRules()}
	assert.False(t, canSendAcceptanceLink(c), "no delivery timestamp")

	c.DeliveredAt = ptrTime()
	assert.True(t, canSendAcceptanceLink(c))

	c.Rules.AcceptanceRequired = false
	assert.False(t, canSendAcceptanceLink(c))

	c.Rules.AcceptanceRequired = true
	c.Status = StatusClosed
	assert.False(t, canSendAcceptanceLink(c))
}

func TestDeliverablesDone(t *testing.T) {
	assert.True(t, deliverablesDone(nil))
	assert.True(t, deliverablesDone([]Deliverable{{Status: DeliverableDelivered}, {Status: DeliverableAccepted}}))
	assert.False(t, deliverablesDone([]Deliverable{{Status: DeliverableDelivered}, {Status: DeliverableRejected}}))
}

func TestCheckLocks(t *testing.T) {
	locked := changeSet{locked: []string{"amount"}, material: true}
	deliverables := changeSet{deliverables: true}
	schedule := changeSet{milestones: true}

	tests := []struct {
		name    string
		status  Status
		cs      changeSet
		open    bool
		bump    bool
		wantErr bool
	}{
		{"draft amount", StatusDraft, locked, false, false, false},
		{"review amount", StatusInternalReview, locked, false, false, false},
		{"awaiting amount", StatusAwaitingClientApproval, locked, false, false, true},
		{"awaiting amount with open request", StatusAwaitingClientApproval, locked, true, false, false},
		{"awaiting amount as bump", StatusAwaitingClientApproval, locked, false, true, false},
		{"in progress amount", StatusInProgress, locked, false, false, true},
		{"in progress amount as bump", StatusInProgress, locked, false, true, false},
		{"change request amount", StatusChangeRequestCreated, locked, true, true, true},
		{"delivered amount as bump", StatusDelivered, locked, false, true, true},
		{"closed amount", StatusClosed, locked, false, true, true},
		{"in progress deliverables", StatusInProgress, deliverables, false, false, false},
		{"delivered deliverables", StatusDelivered, deliverables, false, false, true},
		{"delivered milestones", StatusDelivered, schedule, false, false, false},
		{"accepted milestones", StatusAccepted, schedule, false, false, true},
		{"cancelled milestones", StatusCancelled, schedule, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLocks(Commitment{Status: tt.status}, tt.cs, tt.open, tt.bump)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidState)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusAccepted, StatusClosed, StatusCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusDraft, StatusInProgress, StatusDelivered, StatusChangeRequestCreated} {
		assert.False(t, s.Terminal(), s)
	}
}
