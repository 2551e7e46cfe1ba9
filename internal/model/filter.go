package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reserved filter keys that are not question ids.
const (
	FilterSubmitStatus  = "submit_status"
	FilterOutcomeStatus = "outcome_status"
	FilterRegistered    = "registered"
)

const filterDateLayout = "2006-01-02"

// AgeRange compares an answer as an integer, inclusive on both ends.
type AgeRange struct {
	QuestionID int64
	Min        int
	Max        int
}

// PatientFilter narrows a listing. Answer filters match the stored JSON-quoted value exactly.
type PatientFilter struct {
	Answers        map[int64]string
	SubmitStatus   *bool
	OutcomeStatus  *bool
	RegisteredFrom *time.Time
	// RegisteredBefore is exclusive.
	RegisteredBefore *time.Time
	Age              *AgeRange
}

func (f PatientFilter) Empty() bool {
	return len(f.Answers) == 0 && f.SubmitStatus == nil && f.OutcomeStatus == nil &&
		f.RegisteredFrom == nil && f.RegisteredBefore == nil && f.Age == nil
}

// ParseFilters reads filter[...] style key/value pairs. ageQuestionID selects the one
// question whose value is a "min-max" integer range rather than an exact match.
func ParseFilters(raw map[string]string, ageQuestionID int64) (PatientFilter, error) {
	var f PatientFilter

	for key, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case FilterSubmitStatus:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return f, fmt.Errorf("invalid %s filter %q", key, value)
			}
			f.SubmitStatus = &b
		case FilterOutcomeStatus:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return f, fmt.Errorf("invalid %s filter %q", key, value)
			}
			f.OutcomeStatus = &b
		case FilterRegistered:
			from, before, err := parseDateRange(value)
			if err != nil {
				return f, err
			}
			f.RegisteredFrom, f.RegisteredBefore = from, before
		default:
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil || id <= 0 {
				return f, fmt.Errorf("unknown filter %q", key)
			}
			if ageQuestionID > 0 && id == ageQuestionID {
				r, err := parseIntRange(value)
				if err != nil {
					return f, err
				}
				r.QuestionID = id
				f.Age = r
				continue
			}
			if f.Answers == nil {
				f.Answers = make(map[int64]string)
			}
			f.Answers[id] = value
		}
	}
	return f, nil
}

// parseDateRange accepts "from,to" with either side optional; "to" is inclusive.
func parseDateRange(value string) (*time.Time, *time.Time, error) {
	parts := strings.SplitN(value, ",", 2)
	var from, before *time.Time

	if s := strings.TrimSpace(parts[0]); s != "" {
		t, err := time.Parse(filterDateLayout, s)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid registration start %q", s)
		}
		from = &t
	}
	if len(parts) == 2 {
		if s := strings.TrimSpace(parts[1]); s != "" {
			t, err := time.Parse(filterDateLayout, s)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid registration end %q", s)
			}
			t = t.AddDate(0, 0, 1)
			before = &t
		}
	}
	if from != nil && before != nil && !from.Before(*before) {
		return nil, nil, fmt.Errorf("registration range %q is empty", value)
	}
	return from, before, nil
}

// parseIntRange accepts "min-max", "min-" or "-max".
func parseIntRange(value string) (*AgeRange, error) {
	r := &AgeRange{Min: 0, Max: 1<<31 - 1}
	lo, hi, found := strings.Cut(value, "-")
	if !found {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid range %q", value)
		}
		r.Min, r.Max = n, n
		return r, nil
	}
	if s := strings.TrimSpace(lo); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q", value)
		}
		r.Min = n
	}
	if s := strings.TrimSpace(hi); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q", value)
		}
		r.Max = n
	}
	if r.Min > r.Max {
		return nil, fmt.Errorf("invalid range %q", value)
	}
	return r, nil
}

// Match reports whether a stored value falls inside the range. Only plain integers
// of up to nine digits take part, the same rule the SQL cast applies.
func (r *AgeRange) Match(value string) bool {
	text := DisplayText(value)
	digits := strings.TrimPrefix(text, "-")
	if len(digits) == 0 || len(digits) > 9 || strings.Trim(digits, "0123456789") != "" {
		return false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return false
	}
	return n >= r.Min && n <= r.Max
}
