package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"contextinsight/internal/model"
)

type ContextInsightRepository struct {
	db *gorm.DB
}

func NewContextInsightRepository(db *gorm.DB) *ContextInsightRepository {
	return &ContextInsightRepository{db: db}
}

// Create inserts a new row; id and timestamps are filled in on insight.
func (r *ContextInsightRepository) Create(ctx context.Context, insight *model.ContextInsight) error {
	if err := r.db.WithContext(ctx).Create(insight).Error; err != nil {
		return fmt.Errorf("create context insight failed: %w", err)
	}
	return nil
}

// GetLatestBySessionID returns nil when the session has no insight.
func (r *ContextInsightRepository) GetLatestBySessionID(ctx context.Context, sessionID string) (*model.ContextInsight, error) {
	var insight model.ContextInsight
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		First(&insight).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get context insight failed: %w", err)
	}
	return &insight, nil
}

// UpdateBySessionID overwrites the analysis fields of every row of the
// session and reports how many rows matched.
func (r *ContextInsightRepository) UpdateBySessionID(ctx context.Context, sessionID string, insight *model.ContextInsight) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ContextInsight{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"dataset_name":         insight.DatasetName,
			"purpose":              insight.Purpose,
			"domain":               insight.Domain,
			"key_entities":         insight.KeyEntities,
			"use_cases":            insight.UseCases,
			"audience":             insight.Audience,
			"business_value":       insight.BusinessValue,
			"data_health":          insight.DataHealth,
			"key_insights":         insight.KeyInsights,
			"recommended_analyses": insight.RecommendedAnalyses,
			"context_summary":      insight.ContextSummary,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("update context insight failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ContextInsightRepository) DeleteBySessionID(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.ContextInsight{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete context insight failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ContextInsightRepository) List(ctx context.Context) ([]model.ContextInsight, error) {
	var insights []model.ContextInsight
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&insights).Error; err != nil {
		return nil, fmt.Errorf("list context insights failed: %w", err)
	}
	return insights, nil
}
