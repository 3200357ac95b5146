package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/homebrew-hq/homebrew-engine/pkg/models"
)

// InjectionCheckResult describes a filter value that matched a SQL injection
// pattern.
type InjectionCheckResult struct {
	Field       string // Column the value was compared against
	Value       string // The offending value
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckValueForInjection runs libinjection over a filter value. Only strings
// are checked; coerced numbers and dates cannot carry a payload.
//
// Filter values are always bound as parameters, so a match is not exploitable
// through the dispatcher. It is still a strong signal that the model (or a
// caller) is being steered, which is why the dispatcher reports it.
func CheckValueForInjection(field string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Field:       field,
		Value:       strValue,
		Fingerprint: string(fingerprint),
	}
}

// CheckConditions returns a result for every condition whose value looks like
// an injection attempt.
func CheckConditions(conds []models.Condition) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, c := range conds {
		if r := CheckValueForInjection(c.Column, c.Value); r != nil {
			results = append(results, r)
		}
	}
	return results
}
