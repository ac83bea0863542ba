package transform

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateConditions_AllSatisfied(t *testing.T) {
	value := map[string]interface{}{
		"age":    float64(25),
		"status": "active",
	}
	conditions := []FilterCondition{
		{Field: "age", Kind: ConditionRange, Min: 18, Max: 100},
		{Field: "status", Kind: ConditionEquals, Equals: "active"},
	}

	assert.True(t, EvaluateConditions(value, conditions))
}

func TestEvaluateConditions_MissingFieldFailsMessage(t *testing.T) {
	// "age" satisfies its condition, but the absent "status" field must fail
	// the whole message, not be skipped.
	value := map[string]interface{}{
		"age": float64(25),
	}
	conditions := []FilterCondition{
		{Field: "age", Kind: ConditionRange, Min: 18, Max: 100},
		{Field: "status", Kind: ConditionEquals, Equals: "active"},
	}

	assert.False(t, EvaluateConditions(value, conditions))
}

func TestEvaluateConditions_Range(t *testing.T) {
	cond := []FilterCondition{{Field: "age", Kind: ConditionRange, Min: 18, Max: 100}}

	tests := []struct {
		name string
		age  interface{}
		want bool
	}{
		{"below min", float64(17), false},
		{"at min", float64(18), true},
		{"inside", float64(42), true},
		{"at max", float64(100), true},
		{"above max", float64(101), false},
		{"int value", 42, true},
		{"json number", json.Number("42"), true},
		{"non-numeric", "forty-two", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateConditions(map[string]interface{}{"age": tt.age}, cond)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateConditions_EqualsNormalizesNumerics(t *testing.T) {
	// JSON decoding turns every number into float64; an expectation written
	// as int 25 must still match.
	cond := []FilterCondition{{Field: "age", Kind: ConditionEquals, Equals: 25}}

	assert.True(t, EvaluateConditions(map[string]interface{}{"age": float64(25)}, cond))
	assert.True(t, EvaluateConditions(map[string]interface{}{"age": 25}, cond))
	assert.False(t, EvaluateConditions(map[string]interface{}{"age": float64(26)}, cond))
	assert.False(t, EvaluateConditions(map[string]interface{}{"age": "25"}, cond))
}

func TestEvaluateConditions_Contains(t *testing.T) {
	cond := []FilterCondition{{Field: "email", Kind: ConditionContains, Substring: "@example.com"}}

	assert.True(t, EvaluateConditions(map[string]interface{}{"email": "a@example.com"}, cond))
	assert.False(t, EvaluateConditions(map[string]interface{}{"email": "a@other.org"}, cond))
}

func TestEvaluateConditions_ContainsStringifiesNonStrings(t *testing.T) {
	cond := []FilterCondition{{Field: "code", Kind: ConditionContains, Substring: "404"}}

	assert.True(t, EvaluateConditions(map[string]interface{}{"code": 404}, cond))
	assert.False(t, EvaluateConditions(map[string]interface{}{"code": 200}, cond))
}

func TestEvaluateConditions_EmptySetPasses(t *testing.T) {
	assert.True(t, EvaluateConditions(map[string]interface{}{"anything": 1}, nil))
}

// Evaluation is pure: repeated calls over the same inputs always agree, and
// the verdict is independent of condition order when all fields are present.
func TestEvaluateConditions_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs, same verdict", prop.ForAll(
		func(age int, status string) bool {
			value := map[string]interface{}{
				"age":    float64(age),
				"status": status,
			}
			conditions := []FilterCondition{
				{Field: "age", Kind: ConditionRange, Min: 18, Max: 100},
				{Field: "status", Kind: ConditionEquals, Equals: "active"},
			}
			first := EvaluateConditions(value, conditions)
			second := EvaluateConditions(value, conditions)
			reversed := EvaluateConditions(value, []FilterCondition{conditions[1], conditions[0]})
			return first == second && first == reversed
		},
		gen.IntRange(-10, 150),
		gen.OneConstOf("active", "inactive", "", "ACTIVE"),
	))

	properties.TestingRun(t)
}
