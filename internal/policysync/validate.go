package policysync

import (
	"strings"

	"github.com/genericsim/tribectl/internal/model"
)

// Violation is one failed range rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type percentRule struct {
	field string
	label string
	value func(model.Policy) int
}

var percentRules = []percentRule{
	{model.FieldFoodTaxRate, "Food tax rate", func(p model.Policy) int { return p.FoodTaxRate }},
	{model.FieldWaterTaxRate, "Water tax rate", func(p model.Policy) int { return p.WaterTaxRate }},
	{model.FieldHuntingIncentive, "Hunting incentive", func(p model.Policy) int { return p.HuntingIncentive }},
	{model.FieldGatheringIncentive, "Gathering incentive", func(p model.Policy) int { return p.GatheringIncentive }},
	{model.FieldCentralStorageTaxRate, "Central storage tax rate", func(p model.Policy) int { return p.CentralStorageTaxRate }},
}

// Validate checks every range rule and returns all violations in rule order.
// Sharing priority and the central storage toggle are left to the backend.
func Validate(p model.Policy) []Violation {
	var out []Violation
	for _, r := range percentRules {
		if v := r.value(p); v < 0 || v > 100 {
			out = append(out, Violation{Field: r.field, Message: r.label + " must be between 0 and 100"})
		}
	}
	if p.StorageDecayRate < 0 || p.StorageDecayRate > 1 {
		out = append(out, Violation{Field: model.FieldStorageDecayRate, Message: "Storage decay rate must be between 0 and 1"})
	}
	if p.StorageDecayInterval < 1 {
		out = append(out, Violation{Field: model.FieldStorageDecayInterval, Message: "Storage decay interval must be at least 1"})
	}
	return out
}

// JoinViolations renders violations as one sentence list.
func JoinViolations(vs []Violation) string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, ". ")
}
