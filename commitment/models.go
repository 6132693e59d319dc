package commitment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Raguls333/noolix-sub001/audit"
)

// Status is the lifecycle position of a commitment.
type Status string

const (
	StatusDraft                  Status = "DRAFT"
	StatusInternalReview         Status = "INTERNAL_REVIEW"
	StatusAwaitingClientApproval Status = "AWAITING_CLIENT_APPROVAL"
	StatusInProgress             Status = "IN_PROGRESS"
	StatusChangeRequestCreated   Status = "CHANGE_REQUEST_CREATED"
	StatusDelivered              Status = "DELIVERED"
	StatusAccepted               Status = "ACCEPTED"
	StatusClosed                 Status = "CLOSED"
	StatusCancelled              Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

type MilestoneStatus string

const (
	MilestoneNotStarted MilestoneStatus = "NOT_STARTED"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
	MilestoneBlocked    MilestoneStatus = "BLOCKED"
)

type DeliverableStatus string

const (
	DeliverableNotStarted DeliverableStatus = "NOT_STARTED"
	DeliverableInProgress DeliverableStatus = "IN_PROGRESS"
	DeliverableDelivered  DeliverableStatus = "DELIVERED"
	DeliverableAccepted   DeliverableStatus = "ACCEPTED"
	DeliverableRejected   DeliverableStatus = "REJECTED"
)

// PaymentTerm is one line of the payment schedule.
type PaymentTerm struct {
	Text     string           `json:"text" validate:"required,max=500"`
	Status   PaymentStatus    `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE CANCELLED"`
	DueDate  *time.Time       `json:"dueDate,omitempty"`
	PaidDate *time.Time       `json:"paidDate,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

type Milestone struct {
	Text        string          `json:"text" validate:"required,max=500"`
	Status      MilestoneStatus `json:"status" validate:"omitempty,oneof=NOT_STARTED IN_PROGRESS COMPLETED BLOCKED"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type Deliverable struct {
	Text        string            `json:"text" validate:"required,max=500"`
	Status      DeliverableStatus `json:"status" validate:"omitempty,oneof=NOT_STARTED IN_PROGRESS DELIVERED ACCEPTED REJECTED"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	DeliveredAt *time.Time        `json:"deliveredAt,omitempty"`
}

type Attachment struct {
	URL       string         `json:"url" validate:"required,url"`
	StorageID string         `json:"storageId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ClientSnapshot is the client identity copied onto a commitment when it is
// created or forked. Later edits to the client record do not reach it.
type ClientSnapshot struct {
	Name    string
	Email   string
	Company string
}

// Commitment is one version of an agreement between the organization and a
// client. Versions produced by change requests are separate rows linked
// through PreviousCommitmentID; all of them share RootCommitmentID.
type Commitment struct {
	ID       string
	OrgID    string
	ClientID string
	Client   ClientSnapshot

	Title            string
	ScopeTitle       string
	ScopeDescription string
	Amount           decimal.Decimal
	Currency         string

	PaymentTerms []PaymentTerm
	Milestones   []Milestone
	Deliverables []Deliverable
	Attachments  []Attachment

	Rules ApprovalRules

	Status  Status
	Version int

	ApprovalSentAt *time.Time
	ApprovedAt     *time.Time
	DeliveredAt    *time.Time
	AcceptedAt     *time.Time

	RootCommitmentID     string
	PreviousCommitmentID *string
	ChangeRequestID      *string

	CreatedByUserID  string
	AssignedToUserID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeRequestStatus tracks the resolution of a change request.
type ChangeRequestStatus string

const (
	ChangeRequestOpen     ChangeRequestStatus = "OPEN"
	ChangeRequestAccepted ChangeRequestStatus = "ACCEPTED"
	ChangeRequestRejected ChangeRequestStatus = "REJECTED"
)

// ChangeRequest asks for a commitment to be revised. At most one may be open
// per commitment.
type ChangeRequest struct {
	ID                string
	OrgID             string
	CommitmentID      string
	CommitmentVersion int
	Reason            string
	Status            ChangeRequestStatus
	PreviousStatus    Status
	RequestedBy       audit.Actor
	ResolvedAt        *time.Time
	ResolutionNote    *string
	CreatedVersionID  *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Scope restricts reads to one organization and, for managers, to the
// commitments assigned to them.
type Scope struct {
	OrgID      string
	AssigneeID string
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	Status     Status
	ClientID   string
	AssigneeID string
	Limit      int
	Offset     int
}

type ListResult struct {
	Items []Commitment
	Total int
}

// Person is the display identity of a user joined onto a commitment.
type Person struct {
	ID    string
	Name  string
	Email string
}

// Detail is a commitment with its assignee identity resolved.
type Detail struct {
	Commitment
	Assignee *Person
}
