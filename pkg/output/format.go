// Package output provides utilities for formatting and displaying analysis results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/iwvelando/equity-snapshot/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report is one analyzed submission.
type Report struct {
	Submission form.Submission `json:"submission"`
	Metrics    metrics.Metrics `json:"metrics"`
	Suggestion string          `json:"suggestion"`
}

// NewReport evaluates sub with engine and bundles the result.
func NewReport(engine *metrics.Engine, sub form.Submission) Report {
	if engine == nil {
		engine = metrics.NewEngine(nil)
	}
	m := engine.Evaluate(sub)
	return Report{Submission: sub, Metrics: m, Suggestion: metrics.Suggestion(m)}
}

// Write renders report to w in the named output format.
func Write(w io.Writer, outputFormat string, report Report) error {
	switch outputFormat {
	case constants.OutputFormatPretty, "":
		return PrettyFormat(w, report)
	case constants.OutputFormatCSV:
		return CsvFormat(w, report)
	case constants.OutputFormatJSON:
		return JSONFormat(w, report)
	default:
		return fmt.Errorf("invalid output format: %s", outputFormat)
	}
}

// PrettyFormat outputs the dashboard as human-readable cards.
func PrettyFormat(w io.Writer, report Report) error {
	p := message.NewPrinter(language.English)
	sub, m := report.Submission, report.Metrics

	comparison := "Below"
	if m.LivingWageComparison == metrics.Above {
		comparison = "Above"
	}

	group := "n/a"
	if m.GroupComparison != metrics.GroupUnknown && m.GroupComparison != "" {
		group = format.WholeCurrency(float64(m.GroupWageGap))
	}
	groupDetail := string(metrics.GroupUnknown)
	if m.GroupAverageIncome > 0 {
		groupDetail = fmt.Sprintf("%s, %s %s average %s", m.GroupComparison, sub.Race, sub.Gender, format.WholeCurrency(m.GroupAverageIncome))
	}

	lines := []struct {
		format string
		args   []interface{}
	}{
		{"--- Equity snapshot for %s in %s ---\n", []interface{}{sub.JobTitle, sub.Location}},
		{"Monthly income | %s\n", []interface{}{format.Currency(sub.MonthlyIncome)}},
		{"Monthly rent   | %s\n", []interface{}{format.Currency(sub.MonthlyRent)}},
		{"\n", nil},
		{"Rent Burden        | %s | %s\n", []interface{}{format.Percent(m.RentBurdenPercent), m.RentBurdenStatus}},
		{"Wage Gap           | %s | role average %s\n", []interface{}{format.WholeCurrency(float64(m.WageGap)), format.WholeCurrency(m.AverageIncomeForRole)}},
		{"Group Wage Gap     | %s | %s\n", []interface{}{group, groupDetail}},
		{"Living Wage        | %s | %s Living Wage\n", []interface{}{format.Percent(m.LivingWageRatioPercent), comparison}},
		{"Financial Pressure | %s | score %d\n", []interface{}{m.FinancialPressure, m.PressureScore}},
		{"\n%s\n", []interface{}{report.Suggestion}},
	}
	for _, line := range lines {
		if _, err := p.Fprintf(w, line.format, line.args...); err != nil {
			return err
		}
	}
	return nil
}

// CsvFormat outputs a header row and one data row.
func CsvFormat(w io.Writer, report Report) error {
	sub, m := report.Submission, report.Metrics
	cw := csv.NewWriter(w)

	records := [][]string{
		{
			"jobTitle", "monthlyIncome", "monthlyRent", "location", "race", "gender",
			"rentBurden", "rentBurdenPercent", "rentBurdenStatus", "averageIncomeForRole",
			"wageGap", "livingWageRatioPercent", "livingWageComparison", "pressureScore",
			"financialPressure", "groupAverageIncome", "groupWageGap", "groupComparison",
			"createdAt",
		},
		{
			sub.JobTitle,
			strconv.FormatFloat(sub.MonthlyIncome, 'f', 2, 64),
			strconv.FormatFloat(sub.MonthlyRent, 'f', 2, 64),
			sub.Location,
			string(sub.Race),
			string(sub.Gender),
			strconv.FormatFloat(sub.RentBurden, 'f', 4, 64),
			strconv.Itoa(m.RentBurdenPercent),
			string(m.RentBurdenStatus),
			strconv.FormatFloat(m.AverageIncomeForRole, 'f', 2, 64),
			strconv.Itoa(m.WageGap),
			strconv.Itoa(m.LivingWageRatioPercent),
			string(m.LivingWageComparison),
			strconv.Itoa(m.PressureScore),
			string(m.FinancialPressure),
			strconv.FormatFloat(m.GroupAverageIncome, 'f', 2, 64),
			strconv.Itoa(m.GroupWageGap),
			string(m.GroupComparison),
			sub.CreatedAt.Format(time.RFC3339),
		},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// JSONFormat outputs the report as indented JSON.
func JSONFormat(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}
