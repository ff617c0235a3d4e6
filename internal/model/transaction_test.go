package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction_AllPresent(t *testing.T) {
	tx := NewTransaction("T1", 500, "Acme", "Sales")
	assert.True(t, tx.Has(FieldID|RequiredFields))
	assert.Equal(t, Field(0), tx.Missing())
	assert.Equal(t, "T1", tx.Identifier())
}

func TestTransaction_IdentifierFallsBackToRow(t *testing.T) {
	tx := Transaction{Row: 7, Amount: 1, Present: RequiredFields}
	assert.Equal(t, "7", tx.Identifier())

	tx.Present |= FieldID
	assert.Equal(t, "7", tx.Identifier(), "empty ID still falls back")

	tx.ID = "INV-9"
	assert.Equal(t, "INV-9", tx.Identifier())
}

func TestTransaction_Missing(t *testing.T) {
	tx := Transaction{Present: FieldAmount}
	missing := tx.Missing()
	assert.Equal(t, FieldVendor|FieldDepartment, missing)
	assert.Equal(t, "Vendor,Department", missing.String())
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "Amount", FieldAmount.String())
	assert.Equal(t, "Transaction_ID,Amount,Vendor,Department", (FieldID | RequiredFields).String())
	assert.Equal(t, "", Field(0).String())
}

func TestBatchResult_Flagged(t *testing.T) {
	res := &BatchResult{Assessments: []Assessment{
		{ID: "a", Flagged: true},
		{ID: "b"},
		{ID: "c", Flagged: true},
	}}
	assert.Equal(t, 2, res.FlaggedCount())
	flagged := res.Flagged()
	require.Len(t, flagged, 2)
	assert.Equal(t, "a", flagged[0].ID)
	assert.Equal(t, "c", flagged[1].ID)
}

func TestRecordError_Unwrap(t *testing.T) {
	err := NewRecordError(3, "T3", FieldAmount, eris.Wrapf(ErrInvalidAmount, "parse %q", "abc"))
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	assert.False(t, errors.Is(err, ErrMissingField))
	assert.Contains(t, err.Error(), "row 3 (id T3): Amount")
	assert.Equal(t, "Amount", err.Column)

	wrapped := eris.Wrap(err, "scorer: validate")
	var re *RecordError
	require.True(t, errors.As(wrapped, &re))
	assert.Equal(t, 3, re.Row)
}

func TestNewRun(t *testing.T) {
	res := &BatchResult{
		Threshold:   0.7,
		Stats:       DatasetStats{Count: 2, Mean: 10},
		Assessments: []Assessment{{ID: "a", Flagged: true}, {ID: "b"}},
		Rejected:    []RecordError{{Row: 2}},
	}
	run := NewRun("in.xlsx", RunOptions{Threshold: 0.7}, res)
	assert.Equal(t, RunSummary{Total: 2, Flagged: 1, Rejected: 1}, run.Summary)
	assert.Equal(t, "in.xlsx", run.Source)
	assert.Equal(t, 2, run.Stats.Count)
}
