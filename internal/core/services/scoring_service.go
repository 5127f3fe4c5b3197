package services

import (
	"fuelink/internal/adapters/persistence/models"
	"fuelink/internal/core/domain"
)

// Risk categories
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// ScoringService produces risk scores and recommended credit limits.
// The credit engine treats its output as opaque: it is consulted only
// when a credit line is created or resized, never per transaction.
type ScoringService struct{}

// NewScoringService creates a new scoring service
func NewScoringService() *ScoringService {
	return &ScoringService{}
}

// ScoreDriver derives a risk category and recommended limit from the
// driver's vehicle profile. Roughly eight tank fills per month is the
// consumption baseline.
func (s *ScoringService) ScoreDriver(driver *models.Driver) domain.CreditScore {
	capacity := driver.FuelTankCapacityL
	if capacity <= 0 {
		capacity = 60.0
	}
	consumption := driver.FuelConsumptionLPerKm
	if consumption <= 0 {
		consumption = 0.12
	}

	estMonthlyLiters := capacity * 8

	switch {
	case estMonthlyLiters <= 400 && consumption <= 0.1:
		return domain.CreditScore{RiskCategory: RiskLow, RecommendedLimit: 5000, Score: 80}
	case estMonthlyLiters >= 1000 || consumption >= 0.18:
		return domain.CreditScore{RiskCategory: RiskHigh, RecommendedLimit: 20000, Score: 35}
	default:
		return domain.CreditScore{RiskCategory: RiskMedium, RecommendedLimit: 10000, Score: 60}
	}
}

// ScoreAgency computes a 0-100 composite score from fleet size, average
// repayment time and monthly fuel volume, and maps it to a recommended
// pool limit proportional to fleet consumption.
func (s *ScoringService) ScoreAgency(agency *models.Agency) domain.CreditScore {
	fleetSize := agency.FleetSize
	if fleetSize < 1 {
		fleetSize = 1
	}
	avgRepaymentDays := agency.AverageRepaymentDays
	if avgRepaymentDays <= 0 {
		avgRepaymentDays = 30.0
	}
	monthlyVolume := agency.MonthlyFuelVolume

	fleetScore := minFloat(float64(fleetSize)/50.0, 1.0) * 30   // Max 30 points
	repaymentScore := maxFloat(0, (60-avgRepaymentDays)/60) * 40 // Max 40 points, faster repayment is better
	volumeScore := minFloat(monthlyVolume/100000.0, 1.0) * 30    // Max 30 points

	score := fleetScore + repaymentScore + volumeScore
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	category := RiskHigh
	switch {
	case score >= 70:
		category = RiskLow
	case score >= 40:
		category = RiskMedium
	}

	// Pool sized for the fleet: per-driver medium limit scaled by score
	recommended := float64(fleetSize) * 10000 * (0.5 + score/200)

	return domain.CreditScore{
		Score:            score,
		RiskCategory:     category,
		RecommendedLimit: recommended,
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
