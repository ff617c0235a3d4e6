package scorer

import "github.com/sells-group/fraudleak/internal/model"

// Fixed rule weights.
const (
	HighAmountWeight      = 0.4
	LowAmountWeight       = 0.1
	RiskyVendorWeight     = 0.3
	RiskyDepartmentWeight = 0.2

	HighAmountLimit = 100000
	LowAmountLimit  = 100
)

// RiskyVendors and RiskyDepartments are matched exactly.
var (
	RiskyVendors = map[string]bool{
		"XYZ Pvt Ltd":    true,
		"FakeVendor Inc": true,
		"ShadyCorp":      true,
	}
	RiskyDepartments = map[string]bool{
		"Procurement": true,
		"Logistics":   true,
		"Purchasing":  true,
	}
)

// Rule is a single independent predicate with a fixed contribution.
type Rule struct {
	Name   string
	Weight float64
	Match  func(tx model.Transaction) bool
}

// RuleEvaluator computes the deterministic rule-based part of a score. It
// needs no dataset context.
type RuleEvaluator struct {
	rules []Rule
}

// NewRuleEvaluator returns the evaluator with the fixed rule set.
func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{rules: []Rule{
		{
			Name:   "high_amount",
			Weight: HighAmountWeight,
			Match: func(tx model.Transaction) bool {
				return tx.Has(model.FieldAmount) && tx.Amount > HighAmountLimit
			},
		},
		{
			Name:   "low_amount",
			Weight: LowAmountWeight,
			Match: func(tx model.Transaction) bool {
				return tx.Has(model.FieldAmount) && tx.Amount < LowAmountLimit
			},
		},
		{
			Name:   "risky_vendor",
			Weight: RiskyVendorWeight,
			Match: func(tx model.Transaction) bool {
				return tx.Has(model.FieldVendor) && RiskyVendors[tx.Vendor]
			},
		},
		{
			Name:   "risky_department",
			Weight: RiskyDepartmentWeight,
			Match: func(tx model.Transaction) bool {
				return tx.Has(model.FieldDepartment) && RiskyDepartments[tx.Department]
			},
		},
	}}
}

// Rules returns the rule set in evaluation order.
func (e *RuleEvaluator) Rules() []Rule {
	return e.rules
}

// Evaluate returns the sum of the contributions of every rule that fires.
// Absent fields never match.
func (e *RuleEvaluator) Evaluate(tx model.Transaction) float64 {
	score, _ := e.Explain(tx)
	return score
}

// Explain is Evaluate plus the names of the rules that fired.
func (e *RuleEvaluator) Explain(tx model.Transaction) (float64, []string) {
	var score float64
	var fired []string
	for _, r := range e.rules {
		if r.Match(tx) {
			score += r.Weight
			fired = append(fired, r.Name)
		}
	}
	return score, fired
}
