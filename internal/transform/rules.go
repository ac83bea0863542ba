package transform

import (
	"fmt"
	"reflect"
	"strings"

	"streampipe/pkg/models"
)

// RuleKind enumerates every enrichment rule the pipeline knows. Dispatch is
// a closed switch so an unhandled kind is a programming error, not a silent
// no-op at runtime.
type RuleKind int

const (
	RuleStampTimestamp RuleKind = iota
	RuleComputeScaled
	RuleLookup
)

func (k RuleKind) String() string {
	switch k {
	case RuleStampTimestamp:
		return "stamp-timestamp"
	case RuleComputeScaled:
		return "compute-scaled"
	case RuleLookup:
		return "lookup"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// EnrichmentRule writes one derived field. Rules run in declaration order,
// so a later rule sees fields written by earlier ones.
type EnrichmentRule struct {
	Field      string
	Kind       RuleKind
	Multiplier float64
}

type ConditionKind int

const (
	ConditionEquals ConditionKind = iota
	ConditionRange
	ConditionContains
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionEquals:
		return "equals"
	case ConditionRange:
		return "range"
	case ConditionContains:
		return "contains"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FilterCondition checks one field. A message passes a filter set only when
// every condition's field is present and satisfied; a missing field fails
// the whole message rather than being skipped.
type FilterCondition struct {
	Field     string
	Kind      ConditionKind
	Equals    interface{}
	Min       float64
	Max       float64
	Substring string
}

// EvaluateConditions is pure: same value mapping and conditions always yield
// the same verdict.
func EvaluateConditions(value map[string]interface{}, conditions []FilterCondition) bool {
	for _, cond := range conditions {
		v, present := value[cond.Field]
		if !present {
			return false
		}
		if !cond.matches(v) {
			return false
		}
	}
	return true
}

func (c FilterCondition) matches(v interface{}) bool {
	switch c.Kind {
	case ConditionEquals:
		return equalValues(v, c.Equals)
	case ConditionRange:
		n, ok := models.NumericValue(v)
		if !ok {
			return false
		}
		return n >= c.Min && n <= c.Max
	case ConditionContains:
		return strings.Contains(stringify(v), c.Substring)
	default:
		return false
	}
}

// equalValues compares numerics by value so a decoded 25.0 matches an
// expected int 25; everything else uses plain equality.
func equalValues(a, b interface{}) bool {
	an, aok := models.NumericValue(a)
	bn, bok := models.NumericValue(b)
	if aok && bok {
		return an == bn
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
