package form

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/equity-snapshot/pkg/mathutil"
)

// Field names as they appear in form payloads and error messages.
const (
	FieldJobTitle      = "jobTitle"
	FieldMonthlyIncome = "monthlyIncome"
	FieldMonthlyRent   = "monthlyRent"
	FieldLocation      = "location"
	FieldRace          = "race"
	FieldGender        = "gender"
)

// Normalizer turns RawInput into a Submission.
type Normalizer struct {
	now       func() time.Time
	validate  *validator.Validate
	raceTag   string
	genderTag string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNormalizer constructs a Normalizer using wall-clock time by default.
func NewNormalizer(opts ...Option) *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	races := make([]string, 0, len(Races))
	for _, r := range Races {
		races = append(races, string(r))
	}
	genders := make([]string, 0, len(Genders))
	for _, g := range Genders {
		genders = append(genders, string(g))
	}

	n := &Normalizer{
		now:       time.Now,
		validate:  v,
		raceTag:   "oneof=" + strings.Join(races, " "),
		genderTag: "oneof=" + strings.Join(genders, " "),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = NewNormalizer()

// Normalize converts raw input using the default Normalizer.
func Normalize(raw RawInput) (Submission, error) {
	return defaultNormalizer.Normalize(raw)
}

// MissingFields returns the names of fields that are empty after trimming,
// in form order.
func MissingFields(raw RawInput) []string {
	return defaultNormalizer.MissingFields(raw)
}

// Ready reports whether every field has a value, i.e. whether submission
// should be enabled.
func Ready(raw RawInput) bool {
	return len(MissingFields(raw)) == 0
}

// MissingFields returns the names of fields that are empty after trimming.
func (n *Normalizer) MissingFields(raw RawInput) []string {
	err := n.validate.Struct(raw.trimmed())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// Normalize validates raw and builds a Submission. RentBurden is always
// recomputed as rent / income.
func (n *Normalizer) Normalize(raw RawInput) (Submission, error) {
	in := raw.trimmed()

	if missing := n.MissingFields(in); len(missing) > 0 {
		return Submission{}, &ValidationBlockedError{Fields: missing}
	}

	income, err := ParseAmount(FieldMonthlyIncome, in.MonthlyIncome)
	if err != nil {
		return Submission{}, err
	}
	if income <= 0 {
		return Submission{}, &NumericParseError{Field: FieldMonthlyIncome, Value: in.MonthlyIncome, Reason: "must be greater than zero"}
	}

	rent, err := ParseAmount(FieldMonthlyRent, in.MonthlyRent)
	if err != nil {
		return Submission{}, err
	}
	if rent < 0 {
		return Submission{}, &NumericParseError{Field: FieldMonthlyRent, Value: in.MonthlyRent, Reason: "must not be negative"}
	}

	if err := n.validate.Var(in.Race, n.raceTag); err != nil {
		return Submission{}, &InvalidTagError{Field: FieldRace, Value: in.Race}
	}
	if err := n.validate.Var(in.Gender, n.genderTag); err != nil {
		return Submission{}, &InvalidTagError{Field: FieldGender, Value: in.Gender}
	}

	return Submission{
		JobTitle:      in.JobTitle,
		MonthlyIncome: income,
		MonthlyRent:   rent,
		Location:      in.Location,
		Race:          Race(in.Race),
		Gender:        Gender(in.Gender),
		RentBurden:    mathutil.Ratio(rent, income),
		CreatedAt:     n.now().UTC(),
	}, nil
}

// ParseAmount parses a user-entered monthly amount. A leading dollar sign
// and thousands separators are accepted; anything that does not parse to a
// finite number is a NumericParseError.
func ParseAmount(field, value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, &NumericParseError{Field: field, Value: value, Reason: "empty value"}
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &NumericParseError{Field: field, Value: value, Reason: "not a number"}
	}
	if !mathutil.IsFinite(amount) {
		return 0, &NumericParseError{Field: field, Value: value, Reason: "not a finite number"}
	}
	return amount, nil
}
