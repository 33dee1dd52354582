package metrics

import (
	"strings"

	"github.com/iwvelando/equity-snapshot/pkg/constants"
)

// Benchmark supplies the comparison figures the wage gap and living wage
// ratio are measured against.
type Benchmark interface {
	// AverageIncome returns the monthly average income for a role in a
	// location, given the submitted income.
	AverageIncome(role, location string, income float64) float64
	// LivingWage returns the monthly living wage for a location.
	LivingWage(location string) float64
}

// GroupBenchmark is implemented by benchmarks that also know the average
// income of a demographic group. The bool is false when no figure is
// configured for the group.
type GroupBenchmark interface {
	GroupAverageIncome(role, location, race, gender string) (float64, bool)
}

// FixedBenchmark is the placeholder benchmark: a flat multiplier over the
// submitted income and a single living wage figure.
type FixedBenchmark struct {
	RoleMultiplier    float64
	MonthlyLivingWage float64
}

// DefaultBenchmark returns the 1.15x / $4,500 placeholder.
func DefaultBenchmark() FixedBenchmark {
	return FixedBenchmark{
		RoleMultiplier:    constants.DefaultRoleIncomeMultiplier,
		MonthlyLivingWage: constants.DefaultLivingWage,
	}
}

func (b FixedBenchmark) AverageIncome(_, _ string, income float64) float64 {
	return income * b.RoleMultiplier
}

func (b FixedBenchmark) LivingWage(_ string) float64 {
	return b.MonthlyLivingWage
}

// RoleIncome is a configured average monthly income for a job title. An
// empty Location matches any location.
type RoleIncome struct {
	JobTitle      string
	Location      string
	AverageIncome float64
}

// LocationWage is a configured monthly living wage for a location.
type LocationWage struct {
	Location   string
	LivingWage float64
}

// GroupIncome is a configured average monthly income for a race and gender.
// An empty JobTitle or Location matches any value.
type GroupIncome struct {
	JobTitle      string
	Location      string
	Race          string
	Gender        string
	AverageIncome float64
}

// TableBenchmark looks up configured figures by job title and location,
// case-insensitively, and defers to a fallback for anything not listed.
type TableBenchmark struct {
	roles     map[string]float64
	locations map[string]float64
	groups    map[string]float64
	fallback  Benchmark
}

// NewTableBenchmark builds a TableBenchmark. Entries with non-positive
// amounts are ignored.
func NewTableBenchmark(fallback Benchmark, roles []RoleIncome, locations []LocationWage, groups []GroupIncome) *TableBenchmark {
	if fallback == nil {
		fallback = DefaultBenchmark()
	}
	t := &TableBenchmark{
		roles:     make(map[string]float64, len(roles)),
		locations: make(map[string]float64, len(locations)),
		groups:    make(map[string]float64, len(groups)),
		fallback:  fallback,
	}
	for _, r := range roles {
		if r.AverageIncome <= 0 || strings.TrimSpace(r.JobTitle) == "" {
			continue
		}
		t.roles[roleKey(r.JobTitle, r.Location)] = r.AverageIncome
	}
	for _, l := range locations {
		if l.LivingWage <= 0 || strings.TrimSpace(l.Location) == "" {
			continue
		}
		t.locations[normalizeKey(l.Location)] = l.LivingWage
	}
	for _, g := range groups {
		if g.AverageIncome <= 0 || strings.TrimSpace(g.Race) == "" || strings.TrimSpace(g.Gender) == "" {
			continue
		}
		t.groups[groupKey(g.JobTitle, g.Location, g.Race, g.Gender)] = g.AverageIncome
	}
	return t
}

func (t *TableBenchmark) AverageIncome(role, location string, income float64) float64 {
	if avg, ok := t.roles[roleKey(role, location)]; ok {
		return avg
	}
	if avg, ok := t.roles[roleKey(role, "")]; ok {
		return avg
	}
	return t.fallback.AverageIncome(role, location, income)
}

func (t *TableBenchmark) LivingWage(location string) float64 {
	if wage, ok := t.locations[normalizeKey(location)]; ok {
		return wage
	}
	return t.fallback.LivingWage(location)
}

// GroupAverageIncome tries the most specific entry first: role and
// location, role only, location only, then the group alone.
func (t *TableBenchmark) GroupAverageIncome(role, location, race, gender string) (float64, bool) {
	candidates := [][2]string{{role, location}, {role, ""}, {"", location}, {"", ""}}
	for _, c := range candidates {
		if avg, ok := t.groups[groupKey(c[0], c[1], race, gender)]; ok {
			return avg, true
		}
	}
	if g, ok := t.fallback.(GroupBenchmark); ok {
		return g.GroupAverageIncome(role, location, race, gender)
	}
	return 0, false
}

func groupKey(role, location, race, gender string) string {
	return roleKey(role, location) + "|" + normalizeKey(race) + "|" + normalizeKey(gender)
}

func roleKey(role, location string) string {
	return normalizeKey(role) + "|" + normalizeKey(location)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
