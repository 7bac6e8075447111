package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func entry(action models.AuditAction) models.AuditEntry {
	return models.AuditEntry{
		ActorID:      "officer-1",
		Action:       action,
		ResourceType: models.ResourceCustomer,
		ResourceID:   "cust-1",
	}
}

func TestRecordStampsAndSequences(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clk := clock.NewFixed(t0)
	rec := NewRecorder(clk, nil)

	first, err := rec.Record(ctx, st, entry(models.ActionRequestReview))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, uint64(1), first.Seq)

	clk.Advance(time.Minute)
	second, err := rec.Record(ctx, st, entry(models.ActionApprove))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestRecordClampsBackwardTimestamps(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clk := clock.NewFixed(t0)
	rec := NewRecorder(clk, nil)

	first, err := rec.Record(ctx, st, entry(models.ActionRequestReview))
	require.NoError(t, err)

	// the clock regressing must never produce an out-of-order trail
	clk.Set(t0.Add(-time.Hour))
	second, err := rec.Record(ctx, st, entry(models.ActionApprove))
	require.NoError(t, err)

	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, uint64(2), second.Seq)

	trail, err := rec.QueryByResource(ctx, st, models.ResourceCustomer, "cust-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionRequestReview, trail[0].Action)
	assert.Equal(t, models.ActionApprove, trail[1].Action)
}

func TestRecordSequencesPerResource(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	rec := NewRecorder(clock.NewFixed(t0), nil)

	a := entry(models.ActionApprove)
	b := entry(models.ActionApprove)
	b.ResourceID = "cust-2"

	got, err := rec.Record(ctx, st, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Seq)

	got, err = rec.Record(ctx, st, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Seq, "sequences are per resource, not global")
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	rec := NewRecorder(clock.NewFixed(t0), nil)

	tests := []struct {
		name   string
		mutate func(e *models.AuditEntry)
	}{
		{"missing actor", func(e *models.AuditEntry) { e.ActorID = "" }},
		{"missing action", func(e *models.AuditEntry) { e.Action = "" }},
		{"missing resource type", func(e *models.AuditEntry) { e.ResourceType = "" }},
		{"missing resource id", func(e *models.AuditEntry) { e.ResourceID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry(models.ActionApprove)
			tt.mutate(&e)
			_, err := rec.Record(ctx, st, e)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
		})
	}
}

func TestExportRange(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clk := clock.NewFixed(t0)
	rec := NewRecorder(clk, nil)

	for i := 0; i < 3; i++ {
		_, err := rec.Record(ctx, st, entry(models.ActionAddNote))
		require.NoError(t, err)
		clk.Advance(time.Hour)
	}

	got, err := rec.ExportRange(ctx, st, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2, "both boundaries are inclusive")

	_, err = rec.ExportRange(ctx, st, t0, t0.Add(-time.Hour))
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}
