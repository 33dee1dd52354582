// Package metrics derives the dashboard figures shown for a submission:
// rent burden, wage gap, living wage ratio and financial pressure.
package metrics

import (
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/iwvelando/equity-snapshot/pkg/format"
	"github.com/iwvelando/equity-snapshot/pkg/mathutil"
)

// RentBurdenStatus tiers the rent burden percentage.
type RentBurdenStatus string

const (
	StatusGood     RentBurdenStatus = "Good"
	StatusModerate RentBurdenStatus = "Moderate"
	StatusHighRisk RentBurdenStatus = "High Risk"
)

// LivingWageComparison places income relative to the living wage.
type LivingWageComparison string

const (
	Above LivingWageComparison = "above"
	Below LivingWageComparison = "below"
)

// GroupComparison places income relative to the average of the submitter's
// race and gender group.
type GroupComparison string

const (
	BelowGroupAverage GroupComparison = "Below Group Avg"
	AboveGroupAverage GroupComparison = "Above Group Avg"
	GroupUnknown      GroupComparison = "Unknown"
)

// PressureLevel is the coarse financial pressure tier.
type PressureLevel string

const (
	PressureLow    PressureLevel = "Low"
	PressureMedium PressureLevel = "Medium"
	PressureHigh   PressureLevel = "High"
)

// Metrics holds the derived dashboard figures. They are recomputed on
// demand and never persisted.
type Metrics struct {
	RentBurdenPercent      int                  `json:"rentBurdenPercent"`
	RentBurdenStatus       RentBurdenStatus     `json:"rentBurdenStatus"`
	AverageIncomeForRole   float64              `json:"averageIncomeForRole"`
	WageGap                int                  `json:"wageGap"`
	LivingWage             float64              `json:"livingWage"`
	LivingWageRatioPercent int                  `json:"livingWageRatioPercent"`
	LivingWageComparison   LivingWageComparison `json:"livingWageComparison"`
	PressureScore          int                  `json:"pressureScore"`
	FinancialPressure      PressureLevel        `json:"financialPressure"`
	GroupAverageIncome     float64              `json:"groupAverageIncome"`
	GroupWageGap           int                  `json:"groupWageGap"`
	GroupComparison        GroupComparison      `json:"groupComparison"`
}

// Engine computes Metrics against a Benchmark.
type Engine struct {
	benchmark Benchmark
}

// NewEngine returns an Engine using b, or the fixed placeholder benchmark
// when b is nil.
func NewEngine(b Benchmark) *Engine {
	if b == nil {
		b = DefaultBenchmark()
	}
	return &Engine{benchmark: b}
}

var defaultEngine = NewEngine(nil)

// Compute derives Metrics from a monthly income and rent using the fixed
// placeholder benchmark. It has no error conditions; a non-positive income
// yields zeroed percentages rather than undefined values.
func Compute(income, rent float64) Metrics {
	return defaultEngine.Compute(income, rent)
}

// Compute derives Metrics without role, location or group context.
func (e *Engine) Compute(income, rent float64) Metrics {
	return e.compute(form.Submission{MonthlyIncome: income, MonthlyRent: rent})
}

// Evaluate derives Metrics for a normalized submission, letting the
// benchmark use its job title, location, race and gender.
func (e *Engine) Evaluate(sub form.Submission) Metrics {
	return e.compute(sub)
}

func (e *Engine) compute(sub form.Submission) Metrics {
	role, location := sub.JobTitle, sub.Location
	income, rent := sub.MonthlyIncome, sub.MonthlyRent
	m := Metrics{}

	m.RentBurdenPercent = mathutil.RoundWhole(mathutil.CalculatePercentage(rent, income))
	m.RentBurdenStatus = ClassifyRentBurden(m.RentBurdenPercent)

	m.AverageIncomeForRole = e.benchmark.AverageIncome(role, location, income)
	m.WageGap = mathutil.RoundWhole(m.AverageIncomeForRole - income)

	m.LivingWage = e.benchmark.LivingWage(location)
	m.LivingWageRatioPercent = mathutil.RoundWhole(mathutil.CalculatePercentage(income, m.LivingWage))
	// Strict comparison: at exactly the living wage the ratio reads 100 but
	// the comparison reads below.
	m.LivingWageComparison = Below
	if income > m.LivingWage {
		m.LivingWageComparison = Above
	}

	m.PressureScore = PressureScore(m.RentBurdenPercent, m.WageGap, m.LivingWageComparison)
	m.FinancialPressure = ClassifyPressure(m.PressureScore)

	m.GroupComparison = GroupUnknown
	if g, ok := e.benchmark.(GroupBenchmark); ok && sub.Race != "" && sub.Gender != "" {
		if avg, found := g.GroupAverageIncome(role, location, string(sub.Race), string(sub.Gender)); found {
			m.GroupAverageIncome = avg
			m.GroupWageGap = mathutil.RoundWhole(avg - income)
			m.GroupComparison = AboveGroupAverage
			if m.GroupWageGap > 0 {
				m.GroupComparison = BelowGroupAverage
			}
		}
	}
	return m
}

// ClassifyRentBurden maps a rent burden percent to its tier. Each tier
// includes its lower bound.
func ClassifyRentBurden(percent int) RentBurdenStatus {
	switch {
	case percent < constants.RentBurdenModerateThreshold:
		return StatusGood
	case percent < constants.RentBurdenHighThreshold:
		return StatusModerate
	default:
		return StatusHighRisk
	}
}

// PressureScore combines rent burden, wage gap and living wage comparison
// into a 0-4 point score.
func PressureScore(rentBurdenPercent, wageGap int, comparison LivingWageComparison) int {
	score := 0
	switch {
	case rentBurdenPercent > constants.RentBurdenHighThreshold:
		score += 2
	case rentBurdenPercent > constants.RentBurdenModerateThreshold:
		score++
	}
	if wageGap > 0 {
		score++
	}
	if comparison == Below {
		score++
	}
	return score
}

// ClassifyPressure maps a pressure score to its level.
func ClassifyPressure(score int) PressureLevel {
	switch {
	case score <= 1:
		return PressureLow
	case score <= 2:
		return PressureMedium
	default:
		return PressureHigh
	}
}

// Suggestion returns the negotiation hint shown under the wage gap card.
func Suggestion(m Metrics) string {
	if m.WageGap > 0 {
		return "Consider negotiating for +" + format.WholeCurrency(float64(m.WageGap)) + " to match the average for your role."
	}
	return "You're earning at or above the average for your role."
}
