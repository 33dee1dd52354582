// Package testutil provides common utility functions for testing.
package testutil

import (
	"testing"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/form"
)

// FixedTime is the clock value stamped on submissions built by MustNormalize.
var FixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// SampleInput returns a complete form that normalizes to 5000 income and
// 1500 rent.
func SampleInput() form.RawInput {
	return form.RawInput{
		JobTitle:      "Software Engineer",
		MonthlyIncome: "5000",
		MonthlyRent:   "1500",
		Location:      "94110",
		Race:          string(form.RaceLatinx),
		Gender:        string(form.GenderWoman),
	}
}

// FixedNormalizer returns a Normalizer whose clock always reads FixedTime.
func FixedNormalizer() *form.Normalizer {
	return form.NewNormalizer(form.WithClock(func() time.Time { return FixedTime }))
}

// MustNormalize normalizes raw with FixedNormalizer, failing the test on error.
func MustNormalize(tb testing.TB, raw form.RawInput) form.Submission {
	tb.Helper()
	sub, err := FixedNormalizer().Normalize(raw)
	if err != nil {
		tb.Fatalf("failed to normalize %+v: %v", raw, err)
	}
	return sub
}
