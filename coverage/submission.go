// CLAUDE:SUMMARY Submission parsing and validation: fixed required-field order, all-missing reporting, non-negative counts, zero-total guard.
package coverage

import (
	"math"
	"strconv"
)

// RequiredFields lists the parameters every check and save must carry, in
// the order they are reported.
var RequiredFields = []string{
	"coveredConditionals",
	"coveredStatements",
	"coveredMethods",
	"conditionals",
	"statements",
	"methods",
	"baseBranch",
}

// Submission is a validated check or save request.
type Submission struct {
	Key
	BaseBranch string `json:"baseBranch"`
	Counts
	Ref string `json:"ref,omitempty"`
}

// Lookup returns the raw value of a named parameter and whether it was sent.
type Lookup func(name string) (string, bool)

// ParseSubmission reads the required fields for key through lookup. With
// withRef the optional ref parameter is read too. The result is validated.
func ParseSubmission(key Key, lookup Lookup, withRef bool) (*Submission, error) {
	raw := make(map[string]string, len(RequiredFields))
	var missing []string
	for _, name := range RequiredFields {
		v, ok := lookup(name)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		raw[name] = v
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	sub := &Submission{Key: key, BaseBranch: raw["baseBranch"]}
	var invalid []string
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{"coveredConditionals", &sub.CoveredConditionals},
		{"coveredStatements", &sub.CoveredStatements},
		{"coveredMethods", &sub.CoveredMethods},
		{"conditionals", &sub.Conditionals},
		{"statements", &sub.Statements},
		{"methods", &sub.Methods},
	} {
		n, err := strconv.ParseInt(raw[f.name], 10, 64)
		if err != nil || n < 0 {
			invalid = append(invalid, f.name)
			continue
		}
		*f.dst = n
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Invalid: invalid}
	}

	if withRef {
		sub.Ref, _ = lookup("ref")
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

// Validate checks the identifying triple, count signs, that neither sum
// overflows, and the zero-total guard. Covered counts may exceed their totals.
func (s *Submission) Validate() error {
	var invalid []string
	if s.ProjectName == "" {
		invalid = append(invalid, "projectName")
	}
	if s.Branch == "" {
		invalid = append(invalid, "branch")
	}
	if s.TestName == "" {
		invalid = append(invalid, "testName")
	}
	if s.BaseBranch == "" {
		invalid = append(invalid, "baseBranch")
	}
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"coveredConditionals", s.CoveredConditionals},
		{"coveredStatements", s.CoveredStatements},
		{"coveredMethods", s.CoveredMethods},
		{"conditionals", s.Conditionals},
		{"statements", s.Statements},
		{"methods", s.Methods},
	} {
		if f.v < 0 {
			invalid = append(invalid, f.name)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Invalid: invalid}
	}
	if !fitsInt64(s.Conditionals, s.Statements, s.Methods) {
		invalid = append(invalid, "conditionals", "statements", "methods")
	}
	if !fitsInt64(s.CoveredConditionals, s.CoveredStatements, s.CoveredMethods) {
		invalid = append(invalid, "coveredConditionals", "coveredStatements", "coveredMethods")
	}
	if len(invalid) > 0 {
		return &ValidationError{Invalid: invalid}
	}
	if s.Total() == 0 {
		return &ValidationError{Err: ErrDegenerateMetric}
	}
	return nil
}

// fitsInt64 reports whether the sum of non-negative vs stays within int64.
func fitsInt64(vs ...int64) bool {
	var sum int64
	for _, v := range vs {
		if v > math.MaxInt64-sum {
			return false
		}
		sum += v
	}
	return true
}
