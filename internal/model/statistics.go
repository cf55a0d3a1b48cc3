package model

// ResourceStatus classifies per-person food and water supply.
type ResourceStatus string

const (
	ResourceAbundant ResourceStatus = "ABUNDANT"
	ResourceAdequate ResourceStatus = "ADEQUATE"
	ResourceLow      ResourceStatus = "LOW"
	ResourceCritical ResourceStatus = "CRITICAL"
)

// Description returns the per-person threshold the status represents.
func (s ResourceStatus) Description() string {
	switch s {
	case ResourceAbundant:
		return "10+ food and water per person"
	case ResourceAdequate:
		return "5-9 food and water per person"
	case ResourceLow:
		return "3-4 food and water per person"
	case ResourceCritical:
		return "Less than 3 food or water per person"
	default:
		return "Unknown"
	}
}

// ClassifyResources derives the resource status from totals and population.
// An empty tribe is always critical.
func ClassifyResources(food, water, population int) ResourceStatus {
	var foodPer, waterPer int
	if population > 0 {
		foodPer = food / population
		waterPer = water / population
	}
	switch {
	case foodPer >= 10 && waterPer >= 10:
		return ResourceAbundant
	case foodPer >= 5 && waterPer >= 5:
		return ResourceAdequate
	case foodPer >= 3 && waterPer >= 3:
		return ResourceLow
	default:
		return ResourceCritical
	}
}

// RoleBreakdown counts members per role.
type RoleBreakdown struct {
	Hunters   int `json:"hunters"`
	Gatherers int `json:"gatherers"`
	Children  int `json:"children"`
	Elders    int `json:"elders"`
}

// HealthStats aggregates member health. Healthy means health >= 70.
type HealthStats struct {
	AverageHealth  int `json:"averageHealth"`
	MinHealth      int `json:"minHealth"`
	MaxHealth      int `json:"maxHealth"`
	HealthyMembers int `json:"healthyMembers"`
}

// ResourceStats reports tribe resources and their status.
type ResourceStats struct {
	Food           int            `json:"food"`
	Water          int            `json:"water"`
	ResourceStatus ResourceStatus `json:"resourceStatus"`
}

// PolicySummary is the subset of policy shown on the statistics page.
type PolicySummary struct {
	FoodTaxRate        int `json:"foodTaxRate"`
	WaterTaxRate       int `json:"waterTaxRate"`
	HuntingIncentive   int `json:"huntingIncentive"`
	GatheringIncentive int `json:"gatheringIncentive"`
}

// TribeStatistics is the aggregated view of a tribe.
type TribeStatistics struct {
	ID              int64          `json:"tribeId"`
	Name            string         `json:"tribeName"`
	CurrentTick     int64          `json:"currentTick"`
	TotalPopulation int            `json:"totalPopulation"`
	RoleBreakdown   RoleBreakdown  `json:"roleBreakdown"`
	HealthStats     HealthStats    `json:"healthStats"`
	ResourceStats   ResourceStats  `json:"resourceStats"`
	PolicySummary   *PolicySummary `json:"policySummary,omitempty"`
}

const healthyThreshold = 70

// ComputeStatistics aggregates a tribe state into statistics.
func ComputeStatistics(s TribeState) TribeStatistics {
	stats := TribeStatistics{
		ID:              s.ID,
		Name:            s.Name,
		CurrentTick:     s.CurrentTick,
		TotalPopulation: len(s.Members),
		ResourceStats: ResourceStats{
			Food:           s.Resources.Food,
			Water:          s.Resources.Water,
			ResourceStatus: ClassifyResources(s.Resources.Food, s.Resources.Water, len(s.Members)),
		},
		PolicySummary: &PolicySummary{
			FoodTaxRate:        s.Policy.FoodTaxRate,
			WaterTaxRate:       s.Policy.WaterTaxRate,
			HuntingIncentive:   s.Policy.HuntingIncentive,
			GatheringIncentive: s.Policy.GatheringIncentive,
		},
	}

	if len(s.Members) == 0 {
		return stats
	}

	total := 0
	stats.HealthStats.MinHealth = s.Members[0].Health
	for _, p := range s.Members {
		switch p.Role {
		case "HUNTER":
			stats.RoleBreakdown.Hunters++
		case "GATHERER":
			stats.RoleBreakdown.Gatherers++
		case "CHILD":
			stats.RoleBreakdown.Children++
		case "ELDER":
			stats.RoleBreakdown.Elders++
		}
		total += p.Health
		stats.HealthStats.MinHealth = min(stats.HealthStats.MinHealth, p.Health)
		stats.HealthStats.MaxHealth = max(stats.HealthStats.MaxHealth, p.Health)
		if p.Health >= healthyThreshold {
			stats.HealthStats.HealthyMembers++
		}
	}
	stats.HealthStats.AverageHealth = total / len(s.Members)
	return stats
}
