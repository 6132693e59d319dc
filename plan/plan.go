// Package plan answers whether an organization's subscription unlocks a
// feature.
package plan

// Plan is an organization's subscription tier.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanStarter Plan = "STARTER"
	PlanPro     Plan = "PRO"
)

// Feature is a capability gated by plan.
type Feature string

const (
	FeatureAssignment      Feature = "ASSIGNMENT"
	FeatureAcceptanceProof Feature = "ACCEPTANCE_PROOF"
)

var features = map[Plan]map[Feature]bool{
	PlanFree:    {},
	PlanStarter: {FeatureAssignment: true},
	PlanPro:     {FeatureAssignment: true, FeatureAcceptanceProof: true},
}

// IsFeatureAllowed reports whether plan p includes f. Unknown plans include nothing.
func IsFeatureAllowed(p Plan, f Feature) bool {
	return features[p][f]
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := features[p]
	return ok
}
