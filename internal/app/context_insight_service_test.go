package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"contextinsight/internal/model"
	"contextinsight/internal/pkg/logger"
	"contextinsight/internal/platform/database"
	"contextinsight/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(context.Background(), database.Options{
		Driver:       database.DriverSQLite,
		DSN:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ContextInsight{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T) (*ContextInsightService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewContextInsightService(repository.NewContextInsightRepository(db), nil, nil, logger.NewNop()), db
}

func ptr(s string) *string {
	return &s
}

func fullContextData() ContextData {
	return ContextData{
		DatasetName:         ptr("Sales2024"),
		Purpose:             "Track quarterly revenue",
		Domain:              "Retail",
		KeyEntities:         []string{"Customer", "Order", "Product"},
		UseCases:            []string{"forecasting", "churn analysis"},
		Audience:            "Finance",
		BusinessValue:       "Better inventory planning",
		DataHealth:          "Good, 2% nulls",
		KeyInsights:         []string{"Q4 peak", "West region lags"},
		RecommendedAnalyses: []string{"cohort retention", "basket analysis"},
		ContextSummary:      "Retail orders for 2024",
	}
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	data := fullContextData()

	saved := svc.Save(ctx, "s1", data)
	require.True(t, saved.Success, saved.Error)
	require.NotNil(t, saved.Data)
	assert.NotEmpty(t, saved.Data.ID)

	got := svc.Get(ctx, "s1")
	require.True(t, got.Success, got.Error)
	insight := got.Data
	assert.Equal(t, "s1", insight.SessionID)
	assert.Equal(t, *data.DatasetName, insight.DatasetName)
	assert.Equal(t, data.Purpose, insight.Purpose)
	assert.Equal(t, data.Domain, insight.Domain)
	assert.Equal(t, model.StringList(data.KeyEntities), insight.KeyEntities)
	assert.Equal(t, model.StringList(data.UseCases), insight.UseCases)
	assert.Equal(t, data.Audience, insight.Audience)
	assert.Equal(t, data.BusinessValue, insight.BusinessValue)
	assert.Equal(t, data.DataHealth, insight.DataHealth)
	assert.Equal(t, model.StringList(data.KeyInsights), insight.KeyInsights)
	assert.Equal(t, model.StringList(data.RecommendedAnalyses), insight.RecommendedAnalyses)
	assert.Equal(t, data.ContextSummary, insight.ContextSummary)
	assert.Equal(t, saved.Data.ID, insight.ID)
}

func TestSaveConcreteScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved := svc.Save(ctx, "s1", ContextData{DatasetName: ptr("Sales2024"), KeyEntities: []string{"Customer", "Order"}})
	require.True(t, saved.Success)

	got := svc.Get(ctx, "s1")
	require.True(t, got.Success)
	assert.Equal(t, "Sales2024", got.Data.DatasetName)
	assert.Equal(t, model.StringList{"Customer", "Order"}, got.Data.KeyEntities)
}

func TestSaveEmptyDataUsesDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved := svc.Save(ctx, "s1", ContextData{})
	require.True(t, saved.Success)
	assert.Equal(t, model.DefaultDatasetName, saved.Data.DatasetName)

	got := svc.Get(ctx, "s1")
	require.True(t, got.Success)
	insight := got.Data
	assert.Equal(t, "Unknown Dataset", insight.DatasetName)
	for _, s := range []string{insight.Purpose, insight.Domain, insight.Audience, insight.BusinessValue, insight.DataHealth, insight.ContextSummary} {
		assert.Empty(t, s)
	}
	for _, l := range []model.StringList{insight.KeyEntities, insight.UseCases, insight.KeyInsights, insight.RecommendedAnalyses} {
		assert.NotNil(t, l)
		assert.Empty(t, l)
	}
}

func TestExplicitEmptyDatasetNameIsKept(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var data ContextData
	require.NoError(t, json.Unmarshal([]byte(`{"dataset_name":""}`), &data))
	require.NotNil(t, data.DatasetName)

	require.True(t, svc.Save(ctx, "s1", data).Success)
	got := svc.Get(ctx, "s1")
	require.True(t, got.Success)
	assert.Equal(t, "", got.Data.DatasetName)

	require.True(t, svc.Update(ctx, "s1", ContextData{DatasetName: ptr("named")}).Success)
	updated := svc.Update(ctx, "s1", data)
	require.True(t, updated.Success)
	assert.Equal(t, "", updated.Data.DatasetName)
	assert.Equal(t, "", svc.Get(ctx, "s1").Data.DatasetName)
}

func TestAbsentOrNullDatasetNameUsesDefault(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, body := range []string{`{}`, `{"dataset_name":null}`} {
		var data ContextData
		require.NoError(t, json.Unmarshal([]byte(body), &data))

		saved := svc.Save(ctx, "s1", data)
		require.True(t, saved.Success)
		assert.Equal(t, model.DefaultDatasetName, saved.Data.DatasetName, body)
	}
}

func TestSaveKeepsEarlierRowsAndLatestWins(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.True(t, svc.Save(ctx, "s1", ContextData{DatasetName: ptr("v1")}).Success)
	require.True(t, svc.Save(ctx, "s1", ContextData{DatasetName: ptr("v2")}).Success)

	var count int64
	require.NoError(t, db.Model(&model.ContextInsight{}).Where("session_id = ?", "s1").Count(&count).Error)
	assert.EqualValues(t, 2, count)

	got := svc.Get(ctx, "s1")
	require.True(t, got.Success)
	assert.Equal(t, "v2", got.Data.DatasetName)
}

func TestGetMissingSession(t *testing.T) {
	svc, _ := newTestService(t)

	got := svc.Get(context.Background(), "nope")
	assert.False(t, got.Success)
	assert.Nil(t, got.Data)
	assert.Equal(t, "No context insight found for this session", got.Error)
	assert.ErrorIs(t, got.Err, ErrInsightNotFound)
}

func TestGetCorruptListFails(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	require.True(t, svc.Save(ctx, "s1", fullContextData()).Success)
	require.NoError(t, db.Exec("UPDATE context_insights SET key_insights = ? WHERE session_id = ?", "not json", "s1").Error)

	got := svc.Get(ctx, "s1")
	assert.False(t, got.Success)
	assert.Contains(t, got.Error, "decode string list failed")
	assert.False(t, errors.Is(got.Err, ErrInsightNotFound))
}

func TestUpdateThenGetReflectsChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved := svc.Save(ctx, "s1", fullContextData())
	require.True(t, saved.Success)

	updated := svc.Update(ctx, "s1", ContextData{
		DatasetName: ptr("Sales2025"),
		Purpose:     "Plan next year",
		KeyEntities: []string{"Store"},
	})
	require.True(t, updated.Success, updated.Error)
	assert.Equal(t, saved.Data.ID, updated.Data.ID)
	assert.Equal(t, "Sales2025", updated.Data.DatasetName)

	got := svc.Get(ctx, "s1")
	require.True(t, got.Success)
	assert.Equal(t, "Sales2025", got.Data.DatasetName)
	assert.Equal(t, "Plan next year", got.Data.Purpose)
	assert.Equal(t, model.StringList{"Store"}, got.Data.KeyEntities)
	assert.Empty(t, got.Data.Domain)
	assert.Equal(t, model.StringList{}, got.Data.UseCases)
	assert.False(t, got.Data.UpdatedAt.Before(got.Data.CreatedAt))
	assert.False(t, got.Data.UpdatedAt.Before(saved.Data.CreatedAt))
}

func TestUpdateAppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.True(t, svc.Save(ctx, "s1", fullContextData()).Success)

	updated := svc.Update(ctx, "s1", ContextData{})
	require.True(t, updated.Success)
	assert.Equal(t, model.DefaultDatasetName, updated.Data.DatasetName)
	assert.Equal(t, model.StringList{}, updated.Data.KeyEntities)
}

func TestUpdateMissingSessionEchoesInput(t *testing.T) {
	svc, _ := newTestService(t)

	updated := svc.Update(context.Background(), "nope", ContextData{DatasetName: ptr("Sales2024"), UseCases: []string{"a"}})
	require.True(t, updated.Success)
	assert.Empty(t, updated.Data.ID)
	assert.Equal(t, "nope", updated.Data.SessionID)
	assert.Equal(t, "Sales2024", updated.Data.DatasetName)
	assert.Equal(t, model.StringList{"a"}, updated.Data.UseCases)

	assert.False(t, svc.Get(context.Background(), "nope").Success)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	missing := svc.Delete(ctx, "nope")
	assert.True(t, missing.Success)
	assert.Empty(t, missing.Error)

	require.True(t, svc.Save(ctx, "s1", ContextData{}).Success)
	require.True(t, svc.Save(ctx, "s1", ContextData{}).Success)

	deleted := svc.Delete(ctx, "s1")
	assert.True(t, deleted.Success)
	assert.Equal(t, "Context insight deleted", deleted.Message)
	assert.False(t, svc.Get(ctx, "s1").Success)
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	empty := svc.List(ctx)
	require.True(t, empty.Success)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)

	require.True(t, svc.Save(ctx, "s1", ContextData{DatasetName: ptr("a")}).Success)
	require.True(t, svc.Save(ctx, "s2", ContextData{DatasetName: ptr("b")}).Success)

	all := svc.List(ctx)
	require.True(t, all.Success)
	require.Len(t, all.Data, 2)
	assert.Equal(t, "b", all.Data[0].DatasetName)
}

func TestStorageErrorsBecomeFailureResults(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db := newTestDB(t)
	svc := NewContextInsightService(repository.NewContextInsightRepository(db), nil, nil, logger.NewFromZap(zap.New(core)))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	ctx := context.Background()
	results := map[string]Result{
		"save":   svc.Save(ctx, "s1", ContextData{}),
		"get":    svc.Get(ctx, "s1"),
		"update": svc.Update(ctx, "s1", ContextData{}),
		"delete": svc.Delete(ctx, "s1"),
	}
	for name, res := range results {
		assert.False(t, res.Success, name)
		assert.NotEmpty(t, res.Error, name)
		assert.Error(t, res.Err, name)
		assert.Nil(t, res.Data, name)
	}

	list := svc.List(ctx)
	assert.False(t, list.Success)
	assert.NotEmpty(t, list.Error)

	assert.Equal(t, 5, logs.FilterField(zap.String("module", logModule)).Len())
}
