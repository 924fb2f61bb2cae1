package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regtechmx/expediente-engine/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(caseID string, action model.NextAction, reqType model.RequirementType) *model.Run {
	return &model.Run{
		CaseID: caseID,
		Fusion: &model.FusionResult{
			Expediente: &model.Expediente{
				NumeroExpediente: "A/123/2024",
				Causa:            "Aseguramiento",
			},
			OverallConfidence: 0.91,
			NextAction:        action,
			FieldResults: map[string]model.FieldFusionResult{
				model.KeyNumeroExpediente: {
					FieldName:  model.KeyNumeroExpediente,
					Value:      "A/123/2024",
					Confidence: 0.93,
					Decision:   model.DecisionAllAgree,
				},
			},
		},
		Classification: &model.ClassificationResult{
			RequirementType: reqType,
			Code:            reqType.Code(),
			Confidence:      0.95,
			AuthorityType:   model.AutoridadJudicial,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("case-001", model.ActionAutoProcess, model.TipoAseguramiento)
	require.NoError(t, s.SaveRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "case-001", got.CaseID)
	require.NotNil(t, got.Fusion)
	assert.Equal(t, "A/123/2024", got.Fusion.Expediente.NumeroExpediente)
	assert.Equal(t, model.ActionAutoProcess, got.Fusion.NextAction)
	assert.InDelta(t, 0.91, got.Fusion.OverallConfidence, 0.001)
	assert.Equal(t, model.DecisionAllAgree, got.Fusion.FieldResults[model.KeyNumeroExpediente].Decision)
	require.NotNil(t, got.Classification)
	assert.Equal(t, model.TipoAseguramiento, got.Classification.RequirementType)
	assert.Equal(t, 101, got.Classification.Code)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRun_KeepsProvidedID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("case-002", model.ActionReviewRecommended, model.TipoInformacion)
	run.ID = "fixed-id"
	run.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", got.ID)
}

func TestListRuns_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs := []*model.Run{
		sampleRun("case-a", model.ActionAutoProcess, model.TipoAseguramiento),
		sampleRun("case-a", model.ActionManualReviewRequired, model.TipoDesconocido),
		sampleRun("case-b", model.ActionAutoProcess, model.TipoInformacion),
	}
	for i, r := range runs {
		r.CreatedAt = time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC)
		require.NoError(t, s.SaveRun(ctx, r))
	}

	byCase, err := s.ListRuns(ctx, RunFilter{CaseID: "case-a"})
	require.NoError(t, err)
	assert.Len(t, byCase, 2)

	byAction, err := s.ListRuns(ctx, RunFilter{NextAction: model.ActionAutoProcess})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byType, err := s.ListRuns(ctx, RunFilter{RequirementType: model.TipoInformacion})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "case-b", byType[0].CaseID)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "case-b", all[0].CaseID)
}

func TestListRuns_LimitOffset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := sampleRun("case-p", model.ActionAutoProcess, model.TipoAseguramiento)
		r.CreatedAt = time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC)
		require.NoError(t, s.SaveRun(ctx, r))
	}

	page, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListRuns(ctx, RunFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}
