package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fraudleak/internal/model"
)

func TestRuleEvaluator_Scenarios(t *testing.T) {
	e := NewRuleEvaluator()

	tests := []struct {
		name    string
		tx      model.Transaction
		want    float64
		reasons []string
	}{
		{
			name:    "large amount from ordinary vendor",
			tx:      model.NewTransaction("1", 150000, "Acme", "Sales"),
			want:    0.4,
			reasons: []string{"high_amount"},
		},
		{
			name:    "large amount risky vendor risky department",
			tx:      model.NewTransaction("2", 200000, "ShadyCorp", "Procurement"),
			want:    0.9,
			reasons: []string{"high_amount", "risky_vendor", "risky_department"},
		},
		{
			name:    "small amount",
			tx:      model.NewTransaction("3", 50, "Acme", "Sales"),
			want:    0.1,
			reasons: []string{"low_amount"},
		},
		{
			name: "ordinary record",
			tx:   model.NewTransaction("4", 5000, "Acme", "Sales"),
			want: 0,
		},
		{
			name:    "boundaries are exclusive",
			tx:      model.NewTransaction("5", 100000, "FakeVendor Inc", "Logistics"),
			want:    0.5,
			reasons: []string{"risky_vendor", "risky_department"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := e.Explain(tt.tx)
			assert.InDelta(t, tt.want, score, 1e-9)
			assert.Equal(t, tt.reasons, reasons)
			assert.InDelta(t, tt.want, e.Evaluate(tt.tx), 1e-9)
		})
	}
}

func TestRuleEvaluator_HighAmountOnly(t *testing.T) {
	e := NewRuleEvaluator()
	for _, amount := range []float64{100000.01, 100001, 250000, 1e9, 1e15} {
		tx := model.NewTransaction("x", amount, "Acme", "Sales")
		assert.Equal(t, 0.4, e.Evaluate(tx), "amount %v", amount)
	}
}

func TestRuleEvaluator_MidRangeAmountsContributeNothing(t *testing.T) {
	e := NewRuleEvaluator()
	for _, amount := range []float64{100, 100.5, 999, 50000, 99999.99, 100000} {
		tx := model.NewTransaction("x", amount, "Acme", "Sales")
		assert.Equal(t, 0.0, e.Evaluate(tx), "amount %v", amount)
	}
}

func TestRuleEvaluator_VendorAddsFixedWeight(t *testing.T) {
	e := NewRuleEvaluator()
	for vendor := range RiskyVendors {
		for _, amount := range []float64{0, 50, 5000, 500000} {
			for _, dept := range []string{"Sales", "Procurement"} {
				plain := e.Evaluate(model.NewTransaction("x", amount, "Acme", dept))
				risky := e.Evaluate(model.NewTransaction("x", amount, vendor, dept))
				assert.InDelta(t, RiskyVendorWeight, risky-plain, 1e-9, "%s/%v/%s", vendor, amount, dept)
			}
		}
	}
}

func TestRuleEvaluator_MembershipIsExact(t *testing.T) {
	e := NewRuleEvaluator()
	for _, vendor := range []string{"shadycorp", "ShadyCorp ", "Shady Corp", "XYZ"} {
		assert.Equal(t, 0.0, e.Evaluate(model.NewTransaction("x", 500, vendor, "Sales")), vendor)
	}
	assert.Equal(t, 0.0, e.Evaluate(model.NewTransaction("x", 500, "Acme", "procurement")))
}

func TestRuleEvaluator_AbsentFieldsNeverMatch(t *testing.T) {
	e := NewRuleEvaluator()

	tx := model.Transaction{Vendor: "ShadyCorp", Department: "Procurement"}
	assert.Equal(t, 0.0, e.Evaluate(tx), "zero amount without presence must not trigger low_amount")

	tx.Present = model.FieldVendor
	assert.Equal(t, 0.3, e.Evaluate(tx))
}

func TestRuleEvaluator_Rules(t *testing.T) {
	names := make([]string, 0, 4)
	for _, r := range NewRuleEvaluator().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"high_amount", "low_amount", "risky_vendor", "risky_department"}, names)
}
