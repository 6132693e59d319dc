package commitment

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Raguls333/noolix-sub001/apperr"
)

// CreateParams is the input of Create.
type CreateParams struct {
	ClientID         string `validate:"required"`
	Title            string `validate:"required,max=200"`
	ScopeTitle       string `validate:"max=200"`
	ScopeDescription string `validate:"max=20000"`
	Amount           decimal.Decimal
	Currency         string        `validate:"required,iso4217"`
	PaymentTerms     []PaymentTerm `validate:"dive"`
	Milestones       []Milestone   `validate:"dive"`
	Deliverables     []Deliverable `validate:"dive"`
	Attachments      []Attachment  `validate:"dive"`
	Rules            *RulesPatch
	AssignedToUserID *string
}

// patchInput mirrors the set fields of a Patch for struct validation.
type patchInput struct {
	Title            *string        `validate:"omitempty,max=200"`
	ScopeTitle       *string        `validate:"omitempty,max=200"`
	ScopeDescription *string        `validate:"omitempty,max=20000"`
	Currency         *string        `validate:"omitempty,iso4217"`
	PaymentTerms     *[]PaymentTerm `validate:"omitempty,dive"`
	Milestones       *[]Milestone   `validate:"omitempty,dive"`
	Deliverables     *[]Deliverable `validate:"omitempty,dive"`
	Attachments      *[]Attachment  `validate:"omitempty,dive"`
}

var structValidator = validator.New()

func (p *CreateParams) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.ScopeTitle = strings.TrimSpace(p.ScopeTitle)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
}

func (p CreateParams) validate() error {
	if err := structValidator.Struct(p); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid commitment")
	}
	if err := checkAmounts(&p.Amount, p.PaymentTerms); err != nil {
		return err
	}
	return nil
}

func (p *Patch) normalize() {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*p.Currency))
		p.Currency = &c
	}
}

func (p Patch) validate() error {
	in := patchInput{
		Title:            p.Title,
		ScopeTitle:       p.ScopeTitle,
		ScopeDescription: p.ScopeDescription,
		Currency:         p.Currency,
		PaymentTerms:     p.PaymentTerms,
		Milestones:       p.Milestones,
		Deliverables:     p.Deliverables,
		Attachments:      p.Attachments,
	}
	if err := structValidator.Struct(in); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid patch")
	}
	if p.Title != nil && *p.Title == "" {
		return apperr.New(apperr.KindValidation, "title must not be empty")
	}
	if p.Currency != nil && *p.Currency == "" {
		return apperr.New(apperr.KindValidation, "currency must not be empty")
	}
	var terms []PaymentTerm
	if p.PaymentTerms != nil {
		terms = *p.PaymentTerms
	}
	return checkAmounts(p.Amount, terms)
}

func checkAmounts(amount *decimal.Decimal, terms []PaymentTerm) error {
	if amount != nil && amount.IsNegative() {
		return apperr.New(apperr.KindValidation, "amount must not be negative")
	}
	for i, t := range terms {
		if t.Amount != nil && t.Amount.IsNegative() {
			return apperr.New(apperr.KindValidation, "payment term %d amount must not be negative", i)
		}
	}
	return nil
}
