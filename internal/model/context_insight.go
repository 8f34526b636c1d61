package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultDatasetName = "Unknown Dataset"

// ContextInsight is the interpretive analysis of a dataset for one session.
// Several rows may exist per session; the most recently created one wins on read.
type ContextInsight struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id,omitempty"`
	SessionID           string     `gorm:"size:128;not null;index" json:"session_id"`
	DatasetName         string     `gorm:"type:text" json:"dataset_name"`
	Purpose             string     `gorm:"type:text" json:"purpose"`
	Domain              string     `gorm:"type:text" json:"domain"`
	KeyEntities         StringList `gorm:"type:text" json:"key_entities"`
	UseCases            StringList `gorm:"type:text" json:"use_cases"`
	Audience            string     `gorm:"type:text" json:"audience"`
	BusinessValue       string     `gorm:"type:text" json:"business_value"`
	DataHealth          string     `gorm:"type:text" json:"data_health"`
	KeyInsights         StringList `gorm:"type:text" json:"key_insights"`
	RecommendedAnalyses StringList `gorm:"type:text" json:"recommended_analyses"`
	ContextSummary      string     `gorm:"type:text" json:"context_summary"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (ContextInsight) TableName() string {
	return "context_insights"
}

// BeforeCreate assigns a time-ordered id so rows created within the same
// clock tick still sort in insertion order.
func (c *ContextInsight) BeforeCreate(tx *gorm.DB) error {
	if c.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate context insight id failed: %w", err)
	}
	c.ID = id.String()
	return nil
}
