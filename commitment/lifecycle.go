package commitment

import "github.com/Raguls333/noolix-sub001/apperr"

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) valid() bool {
	switch s {
	case StatusDraft, StatusInternalReview, StatusAwaitingClientApproval, StatusInProgress,
		StatusChangeRequestCreated, StatusDelivered, StatusAccepted, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

func canSendApprovalLink(s Status, resend bool) bool {
	switch s {
	case StatusDraft, StatusInternalReview:
		return true
	case StatusAwaitingClientApproval:
		return resend
	default:
		return false
	}
}

func canSendAcceptanceLink(c Commitment) bool {
	return c.Rules.AcceptanceRequired && c.DeliveredAt != nil && c.Status == StatusDelivered
}

func canRaiseChangeRequest(s Status) bool {
	switch s {
	case StatusAwaitingClientApproval, StatusInProgress, StatusDelivered:
		return true
	default:
		return false
	}
}

func deliverablesDone(ds []Deliverable) bool {
	for _, d := range ds {
		if d.Status != DeliverableDelivered && d.Status != DeliverableAccepted {
			return false
		}
	}
	return true
}

func deliverablesLocked(s Status) bool {
	switch s {
	case StatusDelivered, StatusAccepted, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

func scheduleLocked(s Status) bool {
	switch s {
	case StatusAccepted, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

// lockedFieldsEditable reports whether the core scope and pricing fields may
// change. In IN_PROGRESS and AWAITING_CLIENT_APPROVAL they only move through a
// re-approval bump; an open change request also unfreezes the latter.
func lockedFieldsEditable(s Status, hasOpenChangeRequest, bump bool) bool {
	switch s {
	case StatusDraft, StatusInternalReview:
		return true
	case StatusAwaitingClientApproval:
		return hasOpenChangeRequest || bump
	case StatusInProgress:
		return bump
	default:
		return false
	}
}

// checkLocks rejects a change set touching fields frozen in c's status.
func checkLocks(c Commitment, cs changeSet, hasOpenChangeRequest, bump bool) error {
	if len(cs.locked) > 0 && !lockedFieldsEditable(c.Status, hasOpenChangeRequest, bump) {
		return apperr.InvalidState("%s cannot change while commitment is %s", cs.locked[0], c.Status)
	}
	if cs.deliverables && deliverablesLocked(c.Status) {
		return apperr.InvalidState("deliverables cannot change while commitment is %s", c.Status)
	}
	if (cs.paymentTerms || cs.milestones) && scheduleLocked(c.Status) {
		return apperr.InvalidState("payment terms and milestones cannot change while commitment is %s", c.Status)
	}
	return nil
}
