package audit

import "time"

// EventType names an entry in the commitment audit trail.
type EventType string

const (
	EventCommitmentCreated     EventType = "COMMITMENT_CREATED"
	EventCommitmentUpdated     EventType = "COMMITMENT_UPDATED"
	EventVersionBumped         EventType = "COMMITMENT_VERSION_BUMPED"
	EventSubmittedForReview    EventType = "SUBMITTED_FOR_REVIEW"
	EventApprovalLinkSent      EventType = "APPROVAL_LINK_SENT"
	EventClientApproved        EventType = "CLIENT_APPROVED"
	EventClientRequestedChange EventType = "CLIENT_REQUESTED_CHANGE"
	EventChangeRequestCreated  EventType = "CHANGE_REQUEST_CREATED"
	EventChangeRequestAccepted EventType = "CHANGE_REQUEST_ACCEPTED"
	EventChangeRequestRejected EventType = "CHANGE_REQUEST_REJECTED"
	EventMarkedDelivered       EventType = "MARKED_DELIVERED"
	EventAcceptanceLinkSent    EventType = "ACCEPTANCE_LINK_SENT"
	EventClientAccepted        EventType = "CLIENT_ACCEPTED"
	EventAssigneeChanged       EventType = "ASSIGNEE_CHANGED"
	EventCommitmentCancelled   EventType = "COMMITMENT_CANCELLED"
	EventLinkViewed            EventType = "LINK_VIEWED"
)

// Metadata keys shared by client-originated events.
const (
	MetaIP        = "ip"
	MetaUserAgent = "userAgent"
)

// Event is one immutable entry of the audit trail. CommitmentVersion is the
// version the transition was applied to.
type Event struct {
	ID                string
	OrgID             string
	CommitmentID      string
	CommitmentVersion int
	Actor             Actor
	Type              EventType
	Message           string
	Metadata          map[string]any
	CreatedAt         time.Time
}

// Entry is what callers hand to Log; identity and timestamp are assigned on write.
type Entry struct {
	OrgID             string
	CommitmentID      string
	CommitmentVersion int
	Actor             Actor
	Type              EventType
	Message           string
	Metadata          map[string]any
}
