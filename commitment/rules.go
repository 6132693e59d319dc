package commitment

import "github.com/Raguls333/noolix-sub001/apperr"

// Approver names who has to approve a commitment.
type Approver string

const (
	ApproverClientOnly  Approver = "CLIENT_ONLY"
	ApproverBothParties Approver = "BOTH_PARTIES"
)

// ApprovalRules governs re-approval and acceptance for one commitment.
type ApprovalRules struct {
	Approver            Approver `json:"approver"`
	ReApprovalOnChanges bool     `json:"reApprovalOnChanges"`
	AcceptanceRequired  bool     `json:"acceptanceRequired"`
}

// DefaultRules is applied to every field a caller leaves unset.
func DefaultRules() ApprovalRules {
	return ApprovalRules{
		Approver:            ApproverClientOnly,
		ReApprovalOnChanges: true,
		AcceptanceRequired:  true,
	}
}

// RulesPatch is a partial set of rules supplied at a write boundary.
type RulesPatch struct {
	Approver            *Approver `json:"approver,omitempty"`
	ReApprovalOnChanges *bool     `json:"reApprovalOnChanges,omitempty"`
	AcceptanceRequired  *bool     `json:"acceptanceRequired,omitempty"`
}

// Apply overlays p onto r and returns the normalized result.
func (r ApprovalRules) Apply(p *RulesPatch) (ApprovalRules, error) {
	out := r.normalized()
	if p == nil {
		return out, nil
	}
	if p.Approver != nil {
		switch *p.Approver {
		case ApproverClientOnly, ApproverBothParties:
			out.Approver = *p.Approver
		default:
			return ApprovalRules{}, apperr.New(apperr.KindValidation, "unknown approver %q", *p.Approver)
		}
	}
	if p.ReApprovalOnChanges != nil {
		out.ReApprovalOnChanges = *p.ReApprovalOnChanges
	}
	if p.AcceptanceRequired != nil {
		out.AcceptanceRequired = *p.AcceptanceRequired
	}
	return out, nil
}

func (r ApprovalRules) normalized() ApprovalRules {
	if r.Approver != ApproverClientOnly && r.Approver != ApproverBothParties {
		r.Approver = ApproverClientOnly
	}
	return r
}
