package services

import (
	"testing"

	"fuelink/internal/adapters/persistence/models"
)

func TestScoringService_ScoreDriver(t *testing.T) {
	s := NewScoringService()

	cases := []struct {
		name         string
		driver       *models.Driver
		wantCategory string
	}{
		{"small economical vehicle", &models.Driver{FuelTankCapacityL: 45, FuelConsumptionLPerKm: 0.08}, RiskLow},
		{"typical vehicle", &models.Driver{FuelTankCapacityL: 80, FuelConsumptionLPerKm: 0.12}, RiskMedium},
		{"heavy truck", &models.Driver{FuelTankCapacityL: 200, FuelConsumptionLPerKm: 0.35}, RiskHigh},
		{"zero profile falls back to defaults", &models.Driver{}, RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := s.ScoreDriver(tc.driver)
			if score.RiskCategory != tc.wantCategory {
				t.Errorf("RiskCategory = %q, want %q", score.RiskCategory, tc.wantCategory)
			}
			if score.RecommendedLimit <= 0 {
				t.Errorf("RecommendedLimit = %.2f, want > 0", score.RecommendedLimit)
			}
		})
	}
}

func TestScoringService_ScoreAgency(t *testing.T) {
	s := NewScoringService()

	strong := s.ScoreAgency(&models.Agency{FleetSize: 50, AverageRepaymentDays: 5, MonthlyFuelVolume: 100000})
	weak := s.ScoreAgency(&models.Agency{FleetSize: 1, AverageRepaymentDays: 90, MonthlyFuelVolume: 500})

	if strong.Score <= weak.Score {
		t.Errorf("strong score %.2f not above weak score %.2f", strong.Score, weak.Score)
	}
	if strong.RiskCategory != RiskLow {
		t.Errorf("strong RiskCategory = %q, want LOW", strong.RiskCategory)
	}
	if weak.RiskCategory != RiskHigh {
		t.Errorf("weak RiskCategory = %q, want HIGH", weak.RiskCategory)
	}

	for _, score := range []float64{strong.Score, weak.Score} {
		if score < 0 || score > 100 {
			t.Errorf("score %.2f outside 0-100", score)
		}
	}

	// The recommended pool scales with the fleet
	if strong.RecommendedLimit <= weak.RecommendedLimit {
		t.Errorf("strong limit %.2f not above weak limit %.2f", strong.RecommendedLimit, weak.RecommendedLimit)
	}
}

func TestScoringService_ScoreAgency_ZeroValuesFallBack(t *testing.T) {
	s := NewScoringService()

	score := s.ScoreAgency(&models.Agency{})
	if score.Score < 0 || score.Score > 100 {
		t.Errorf("score %.2f outside 0-100", score.Score)
	}
	if score.RecommendedLimit <= 0 {
		t.Errorf("RecommendedLimit = %.2f, want > 0", score.RecommendedLimit)
	}
}
