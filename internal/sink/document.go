package sink

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument indicates a document does not match the persisted
// record shape.
var ErrInvalidDocument = errors.New("invalid submission document")

// Document is the record written to the external store.
type Document struct {
	ID            string    `json:"id" firestore:"id"`
	JobTitle      string    `json:"jobTitle" firestore:"jobTitle"`
	MonthlyIncome float64   `json:"monthlyIncome" firestore:"monthlyIncome"`
	MonthlyRent   float64   `json:"monthlyRent" firestore:"monthlyRent"`
	ZipCode       string    `json:"zipCode" firestore:"zipCode"`
	Race          string    `json:"race" firestore:"race"`
	Gender        string    `json:"gender" firestore:"gender"`
	RentBurden    float64   `json:"rentBurden" firestore:"rentBurden"`
	Timestamp     time.Time `json:"timestamp" firestore:"timestamp"`
}

// NewDocument maps a submission onto the persisted record shape and
// assigns it a fresh ID.
func NewDocument(sub form.Submission) Document {
	return Document{
		ID:            uuid.New().String(),
		JobTitle:      sub.JobTitle,
		MonthlyIncome: sub.MonthlyIncome,
		MonthlyRent:   sub.MonthlyRent,
		ZipCode:       sub.Location,
		Race:          string(sub.Race),
		Gender:        string(sub.Gender),
		RentBurden:    sub.RentBurden,
		Timestamp:     sub.CreatedAt,
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func documentSchema() map[string]interface{} {
	races := make([]interface{}, 0, len(form.Races))
	for _, r := range form.Races {
		races = append(races, string(r))
	}
	genders := make([]interface{}, 0, len(form.Genders))
	for _, g := range form.Genders {
		genders = append(genders, string(g))
	}

	nonEmpty := map[string]interface{}{"type": "string", "minLength": 1}
	return map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"required": []interface{}{
			"id", "jobTitle", "monthlyIncome", "monthlyRent", "zipCode",
			"race", "gender", "rentBurden", "timestamp",
		},
		"properties": map[string]interface{}{
			"id":            nonEmpty,
			"jobTitle":      nonEmpty,
			"monthlyIncome": map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
			"monthlyRent":   map[string]interface{}{"type": "number", "minimum": 0},
			"zipCode":       nonEmpty,
			"race":          map[string]interface{}{"enum": races},
			"gender":        map[string]interface{}{"enum": genders},
			"rentBurden":    map[string]interface{}{"type": "number", "minimum": 0},
			"timestamp":     map[string]interface{}{"type": "string", "format": "date-time"},
		},
		"additionalProperties": false,
	}
}

// ValidateDocument checks doc against the persisted record schema.
func ValidateDocument(doc Document) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(documentSchema()))
	})
	if schemaErr != nil {
		return fmt.Errorf("failed to compile document schema: %w", schemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(details, "; "))
}

// prepare builds and validates the document for sub.
func prepare(sub form.Submission) (Document, error) {
	doc := NewDocument(sub)
	if err := ValidateDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
