package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidSubject marks a subject record that fails structural validation.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrInvalidBucket marks a bucket whose criteria cannot be satisfied.
	ErrInvalidBucket = errors.New("invalid bucket")
)

// FieldError identifies the offending field of a record.
type FieldError struct {
	Kind   error
	Record string
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Record != "" {
		fmt.Fprintf(&b, " %q", e.Record)
	}
	fmt.Fprintf(&b, ": %s %s", e.Field, e.Reason)
	if e.Value != nil {
		fmt.Fprintf(&b, " (got %v)", e.Value)
	}
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// Validate checks the structural invariants of a subject.
func (s Subject) Validate() error {
	fail := func(field, reason string, value any) error {
		return &FieldError{Kind: ErrInvalidSubject, Record: s.ID, Field: field, Value: value, Reason: reason}
	}
	if strings.TrimSpace(s.ID) == "" {
		return fail("id", "is required", nil)
	}
	if !finite(s.TotalVolume) || s.TotalVolume < 0 {
		return fail("total_volume", "must be a non-negative number", s.TotalVolume)
	}
	if !finite(s.AverageUnitPrice) || s.AverageUnitPrice <= 0 {
		return fail("average_unit_price", "must be a positive number", s.AverageUnitPrice)
	}
	if !finite(s.ProfitMargin) {
		return fail("profit_margin", "must be a finite number", s.ProfitMargin)
	}
	if !finite(s.TotalRevenue) || s.TotalRevenue < 0 {
		return fail("total_revenue", "must be a non-negative number", s.TotalRevenue)
	}
	if s.DeliveryCount < 0 {
		return fail("delivery_count", "must not be negative", s.DeliveryCount)
	}
	return nil
}

// Validate checks that the bucket has an id and that no dimension has a
// minimum above its maximum.
func (b Bucket) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return &FieldError{Kind: ErrInvalidBucket, Record: b.Name, Field: "id", Reason: "is required"}
	}
	dims := []struct {
		name string
		r    Range
	}{
		{"volume", b.Criteria.Volume},
		{"price", b.Criteria.Price},
		{"margin", b.Criteria.Margin},
	}
	for _, d := range dims {
		if err := d.r.validate(); err != nil {
			return &FieldError{Kind: ErrInvalidBucket, Record: b.ID, Field: d.name, Reason: err.Error()}
		}
	}
	return nil
}

func (r Range) validate() error {
	if r.Min != nil && !finite(*r.Min) {
		return fmt.Errorf("minimum is not a finite number")
	}
	if r.Max != nil && !finite(*r.Max) {
		return fmt.Errorf("maximum is not a finite number")
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("minimum %g exceeds maximum %g", *r.Min, *r.Max)
	}
	return nil
}

// Matches reports whether the subject satisfies every present bound of the
// criteria. It is the hard eligibility gate applied before scoring.
func Matches(s Subject, c Criteria) bool {
	return c.Volume.Contains(s.TotalVolume) &&
		c.Price.Contains(s.AverageUnitPrice) &&
		c.Margin.Contains(s.ProfitMargin)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
