// Package model contains the progression domain types passed between layers.
package model

// Level is one rung of the tier ladder.
type Level struct {
	Name             string  `json:"name" koanf:"name" validate:"required"`
	Rank             int     `json:"rank" koanf:"rank"`
	MinMonthsService int     `json:"min_months_service" koanf:"min_months_service" validate:"gte=0"`
	MinCareScore     int     `json:"min_care_score" koanf:"min_care_score" validate:"gte=0,lte=100"`
	BonusPercentage  float64 `json:"bonus_percentage" koanf:"bonus_percentage" validate:"gte=0"`
}

// DefaultLadder is the ladder seeded when no configuration overrides it.
func DefaultLadder() []Level {
	return []Level{
		{Name: "Bronze", Rank: 0, MinMonthsService: 0, MinCareScore: 0, BonusPercentage: 0},
		{Name: "Prata", Rank: 1, MinMonthsService: 3, MinCareScore: 70, BonusPercentage: 5},
		{Name: "Ouro", Rank: 2, MinMonthsService: 6, MinCareScore: 80, BonusPercentage: 10},
		{Name: "Platina", Rank: 3, MinMonthsService: 12, MinCareScore: 88, BonusPercentage: 15},
		{Name: "Diamante", Rank: 4, MinMonthsService: 24, MinCareScore: 95, BonusPercentage: 20},
	}
}
