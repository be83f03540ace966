package dto

import (
	"soul-journal-be/pkg/store"
)

// QueryRequest is the ask-my-journal payload. The requester identity never
// travels in here; it comes from the authenticated session.
type QueryRequest struct {
	Message   string           `json:"message" validate:"required,min=1,max=4000"`
	ThreadID  string           `json:"thread_id" validate:"omitempty,uuid"`
	Timezone  string           `json:"timezone" validate:"omitempty,max=64"`
	TimeRange *store.TimeRange `json:"time_range,omitempty"`
}

// QueryAnalysis reports how the answer was produced.
type QueryAnalysis struct {
	SearchMethod     string   `json:"search_method"`
	FallbacksUsed    []string `json:"fallbacks_used,omitempty"`
	ResultsCount     int      `json:"results_count"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Degraded         bool     `json:"degraded"`
	Route            string   `json:"route,omitempty"`
	CacheHit         bool     `json:"cache_hit"`
}

type ReferenceRecord struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Excerpt   string   `json:"excerpt"`
	Themes    []string `json:"themes,omitempty"`
	Relevance float32  `json:"relevance,omitempty"`
}

type StatisticalDatum struct {
	Question    string                   `json:"question"`
	Count       *int64                   `json:"count,omitempty"`
	Percentage  float64                  `json:"percentage,omitempty"`
	TopEmotions []store.EmotionFrequency `json:"top_emotions,omitempty"`
}

type QueryResponse struct {
	Response         string             `json:"response"`
	ThreadID         string             `json:"thread_id"`
	Analysis         QueryAnalysis      `json:"analysis"`
	ReferenceRecords []ReferenceRecord  `json:"reference_records,omitempty"`
	StatisticalData  []StatisticalDatum `json:"statistical_data,omitempty"`
}

type VocabularyResponse struct {
	Themes   []string `json:"themes"`
	Emotions []string `json:"emotions"`
}
