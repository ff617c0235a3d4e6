package model

import (
	"strconv"
	"strings"
)

// Field identifies one input column of a transaction record.
type Field uint8

// Transaction columns. A Transaction records which of them carried a value.
const (
	FieldID Field = 1 << iota
	FieldAmount
	FieldVendor
	FieldDepartment
)

// RequiredFields are the columns scoring cannot proceed without.
const RequiredFields = FieldAmount | FieldVendor | FieldDepartment

// String returns the column name as it appears in reports.
func (f Field) String() string {
	var names []string
	for _, c := range []struct {
		f    Field
		name string
	}{
		{FieldID, "Transaction_ID"},
		{FieldAmount, "Amount"},
		{FieldVendor, "Vendor"},
		{FieldDepartment, "Department"},
	} {
		if f&c.f != 0 {
			names = append(names, c.name)
		}
	}
	return strings.Join(names, ",")
}

// Transaction is a single input record. It is owned by the caller and
// never modified by scoring.
type Transaction struct {
	ID         string  `json:"id"`
	Row        int     `json:"row"`
	Amount     float64 `json:"amount"`
	Vendor     string  `json:"vendor"`
	Department string  `json:"department"`
	Present    Field   `json:"-"`
}

// NewTransaction builds a record with every column present.
func NewTransaction(id string, amount float64, vendor, department string) Transaction {
	return Transaction{
		ID:         id,
		Amount:     amount,
		Vendor:     vendor,
		Department: department,
		Present:    FieldID | RequiredFields,
	}
}

// Has reports whether every column in f carried a value.
func (t Transaction) Has(f Field) bool {
	return t.Present&f == f
}

// Missing returns the required columns the record lacks, or 0.
func (t Transaction) Missing() Field {
	return RequiredFields &^ t.Present
}

// Identifier returns the record ID, falling back to its positional index.
func (t Transaction) Identifier() string {
	if t.Has(FieldID) && t.ID != "" {
		return t.ID
	}
	return strconv.Itoa(t.Row)
}

// DatasetStats summarizes the amounts of one batch. It is computed once per
// batch and is read-only afterwards.
type DatasetStats struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean_amount" yaml:"mean_amount"`
	StdDev float64 `json:"std_amount" yaml:"std_amount"`
}

// Assessment is the scored output for one transaction.
type Assessment struct {
	ID           string   `json:"id" yaml:"id"`
	Amount       float64  `json:"amount" yaml:"amount"`
	Vendor       string   `json:"vendor" yaml:"vendor"`
	Department   string   `json:"department" yaml:"department"`
	RuleScore    float64  `json:"rule_score" yaml:"rule_score"`
	AnomalyScore float64  `json:"anomaly_score" yaml:"anomaly_score"`
	RiskScore    float64  `json:"risk_score" yaml:"risk_score"`
	Flagged      bool     `json:"flagged" yaml:"flagged"`
	Reasons      []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// BatchResult is everything one scoring pass produced.
type BatchResult struct {
	Threshold   float64       `json:"threshold" yaml:"threshold"`
	Stats       DatasetStats  `json:"stats" yaml:"stats"`
	Assessments []Assessment  `json:"assessments" yaml:"assessments"`
	Rejected    []RecordError `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// FlaggedCount returns the number of flagged assessments.
func (r *BatchResult) FlaggedCount() int {
	n := 0
	for _, a := range r.Assessments {
		if a.Flagged {
			n++
		}
	}
	return n
}

// Flagged returns the flagged assessments in input order.
func (r *BatchResult) Flagged() []Assessment {
	var out []Assessment
	for _, a := range r.Assessments {
		if a.Flagged {
			out = append(out, a)
		}
	}
	return out
}
