package app

import "contextinsight/internal/model"

// ContextData is the analysis produced by the upstream context agent.
// Absent fields fall back to defaults when stored. DatasetName is a pointer
// so that an explicit "" is kept while an absent (or null) name gets
// DefaultDatasetName.
type ContextData struct {
	DatasetName         *string  `json:"dataset_name"`
	Purpose             string   `json:"purpose"`
	Domain              string   `json:"domain"`
	KeyEntities         []string `json:"key_entities"`
	UseCases            []string `json:"use_cases"`
	Audience            string   `json:"audience"`
	BusinessValue       string   `json:"business_value"`
	DataHealth          string   `json:"data_health"`
	KeyInsights         []string `json:"key_insights"`
	RecommendedAnalyses []string `json:"recommended_analyses"`
	ContextSummary      string   `json:"context_summary"`
}

func (d ContextData) toInsight(sessionID string) *model.ContextInsight {
	datasetName := model.DefaultDatasetName
	if d.DatasetName != nil {
		datasetName = *d.DatasetName
	}
	return &model.ContextInsight{
		SessionID:           sessionID,
		DatasetName:         datasetName,
		Purpose:             d.Purpose,
		Domain:              d.Domain,
		KeyEntities:         model.NewStringList(d.KeyEntities),
		UseCases:            model.NewStringList(d.UseCases),
		Audience:            d.Audience,
		BusinessValue:       d.BusinessValue,
		DataHealth:          d.DataHealth,
		KeyInsights:         model.NewStringList(d.KeyInsights),
		RecommendedAnalyses: model.NewStringList(d.RecommendedAnalyses),
		ContextSummary:      d.ContextSummary,
	}
}
