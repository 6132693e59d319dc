package commitment

import (
	"reflect"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Title            *string
	ScopeTitle       *string
	ScopeDescription *string
	Amount           *decimal.Decimal
	Currency         *string
	PaymentTerms     *[]PaymentTerm
	Milestones       *[]Milestone
	Deliverables     *[]Deliverable
	Attachments      *[]Attachment
	Rules            *RulesPatch
}

// changeSet records which parts of a commitment a patch actually changes.
type changeSet struct {
	locked       []string
	paymentTerms bool
	milestones   bool
	deliverables bool
	// material changes are the ones a client approved and must see again.
	material bool
}

func (cs changeSet) empty() bool {
	return len(cs.locked) == 0 && !cs.paymentTerms && !cs.milestones && !cs.deliverables
}

func (cs changeSet) fields() []string {
	out := slices.Clone(cs.locked)
	if cs.paymentTerms {
		out = append(out, "paymentTerms")
	}
	if cs.milestones {
		out = append(out, "milestones")
	}
	if cs.deliverables {
		out = append(out, "deliverables")
	}
	return out
}

// applyPatch returns c with p applied and the set of fields that differ.
func applyPatch(c Commitment, p Patch) (Commitment, changeSet, error) {
	next := c
	var cs changeSet

	lockedString := func(name string, dst *string, v *string) {
		if v != nil && *v != *dst {
			*dst = *v
			cs.locked = append(cs.locked, name)
			cs.material = true
		}
	}
	lockedString("title", &next.Title, p.Title)
	lockedString("scopeTitle", &next.ScopeTitle, p.ScopeTitle)
	lockedString("scopeDescription", &next.ScopeDescription, p.ScopeDescription)
	lockedString("currency", &next.Currency, p.Currency)

	if p.Amount != nil && !p.Amount.Equal(c.Amount) {
		next.Amount = *p.Amount
		cs.locked = append(cs.locked, "amount")
		cs.material = true
	}

	if p.Rules != nil {
		rules, err := c.Rules.Apply(p.Rules)
		if err != nil {
			return Commitment{}, changeSet{}, err
		}
		if rules != c.Rules.normalized() {
			next.Rules = rules
			cs.locked = append(cs.locked, "approvalRules")
			cs.material = true
		}
	}

	if p.Attachments != nil && !sameAttachments(c.Attachments, *p.Attachments) {
		next.Attachments = slices.Clone(*p.Attachments)
		cs.locked = append(cs.locked, "attachments")
	}

	if p.PaymentTerms != nil {
		terms := normalizeTerms(*p.PaymentTerms)
		if !sameTerms(c.PaymentTerms, terms) {
			next.PaymentTerms = terms
			cs.paymentTerms = true
			if !slices.Equal(termTexts(c.PaymentTerms), termTexts(terms)) {
				cs.material = true
			}
		}
	}

	if p.Milestones != nil {
		ms := normalizeMilestones(*p.Milestones)
		if !sameMilestones(c.Milestones, ms) {
			next.Milestones = ms
			cs.milestones = true
			if !slices.Equal(milestoneTexts(c.Milestones), milestoneTexts(ms)) {
				cs.material = true
			}
		}
	}

	if p.Deliverables != nil {
		ds := normalizeDeliverables(*p.Deliverables)
		if !sameDeliverables(c.Deliverables, ds) {
			next.Deliverables = ds
			cs.deliverables = true
		}
	}

	return next, cs, nil
}

// requiresReapproval reports whether cs on c must go back to the client as a
// new in-place version.
func requiresReapproval(c Commitment, cs changeSet) bool {
	if !cs.material || !c.Rules.ReApprovalOnChanges {
		return false
	}
	return c.ApprovalSentAt != nil || c.ApprovedAt != nil
}

// bump moves c to its next version and reopens client approval.
func bump(c *Commitment) {
	c.Version++
	c.Status = StatusAwaitingClientApproval
	c.ApprovalSentAt = nil
	c.ApprovedAt = nil
	c.DeliveredAt = nil
	c.AcceptedAt = nil
}

// fork builds the successor of prev produced by accepting cr. The caller
// applies the change request's patch afterwards.
func fork(prev Commitment, cr ChangeRequest, id, actorID string, snapshot ClientSnapshot, now time.Time) Commitment {
	root := prev.RootCommitmentID
	if root == "" {
		root = prev.ID
	}
	prevID := prev.ID
	crID := cr.ID

	return Commitment{
		ID:                   id,
		OrgID:                prev.OrgID,
		ClientID:             prev.ClientID,
		Client:               snapshot,
		Title:                prev.Title,
		ScopeTitle:           prev.ScopeTitle,
		ScopeDescription:     prev.ScopeDescription,
		Amount:               prev.Amount,
		Currency:             prev.Currency,
		PaymentTerms:         slices.Clone(prev.PaymentTerms),
		Milestones:           slices.Clone(prev.Milestones),
		Deliverables:         slices.Clone(prev.Deliverables),
		Attachments:          slices.Clone(prev.Attachments),
		Rules:                prev.Rules,
		Status:               StatusAwaitingClientApproval,
		Version:              prev.Version + 1,
		RootCommitmentID:     root,
		PreviousCommitmentID: &prevID,
		ChangeRequestID:      &crID,
		CreatedByUserID:      actorID,
		AssignedToUserID:     prev.AssignedToUserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func termTexts(ts []PaymentTerm) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Text
	}
	return out
}

func milestoneTexts(ms []Milestone) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Text
	}
	return out
}

func normalizeTerms(ts []PaymentTerm) []PaymentTerm {
	out := slices.Clone(ts)
	for i := range out {
		if out[i].Status == "" {
			out[i].Status = PaymentPending
		}
	}
	return out
}

func normalizeMilestones(ms []Milestone) []Milestone {
	out := slices.Clone(ms)
	for i := range out {
		if out[i].Status == "" {
			out[i].Status = MilestoneNotStarted
		}
	}
	return out
}

func normalizeDeliverables(ds []Deliverable) []Deliverable {
	out := slices.Clone(ds)
	for i := range out {
		if out[i].Status == "" {
			out[i].Status = DeliverableNotStarted
		}
	}
	return out
}

func sameTerms(a, b []PaymentTerm) bool {
	return slices.EqualFunc(a, b, func(x, y PaymentTerm) bool {
		return x.Text == y.Text && x.Status == y.Status &&
			sameTime(x.DueDate, y.DueDate) && sameTime(x.PaidDate, y.PaidDate) &&
			sameDecimal(x.Amount, y.Amount)
	})
}

func sameMilestones(a, b []Milestone) bool {
	return slices.EqualFunc(a, b, func(x, y Milestone) bool {
		return x.Text == y.Text && x.Status == y.Status &&
			sameTime(x.StartDate, y.StartDate) && sameTime(x.DueDate, y.DueDate) &&
			sameTime(x.CompletedAt, y.CompletedAt)
	})
}

func sameDeliverables(a, b []Deliverable) bool {
	return slices.EqualFunc(a, b, func(x, y Deliverable) bool {
		return x.Text == y.Text && x.Status == y.Status &&
			sameTime(x.DueDate, y.DueDate) && sameTime(x.DeliveredAt, y.DeliveredAt)
	})
}

func sameAttachments(a, b []Attachment) bool {
	return slices.EqualFunc(a, b, func(x, y Attachment) bool {
		return x.URL == y.URL && x.StorageID == y.StorageID && reflect.DeepEqual(x.Metadata, y.Metadata)
	})
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
