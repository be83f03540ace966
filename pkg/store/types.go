package store

import (
	"time"
)

// EvidenceRow is a journal record as the retrieval pipeline sees it: the
// entry text plus the structured metadata attached at ingestion time.
type EvidenceRow struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Content   string             `json:"content"`
	Themes    []string           `json:"themes,omitempty"`
	Emotions  map[string]float64 `json:"emotions,omitempty"`
	Entities  []string           `json:"entities,omitempty"`
	Sentiment float64            `json:"sentiment"`
	Score     float32            `json:"score,omitempty"`
}

// TimeRange is a closed [Start, End] window in UTC; both bounds are inclusive.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Equal compares two windows at second precision, which is how they travel
// over the wire.
func (r TimeRange) Equal(other TimeRange) bool {
	return r.Start.Unix() == other.Start.Unix() && r.End.Unix() == other.End.Unix()
}

// LastDays returns the window covering the n days up to now.
func LastDays(n int) TimeRange {
	end := time.Now().UTC()
	return TimeRange{Start: end.AddDate(0, 0, -n), End: end}
}

// Turn is one message of the conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Profile carries the requester facts that steer classification and routing.
type Profile struct {
	Timezone   string `json:"timezone"`
	EntryCount int64  `json:"entry_count"`
	Locale     string `json:"locale"`
}

// Thread is the persisted conversation state for one chat thread.
type Thread struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PercentageStat is the result of a dedicated subset/total aggregation call.
type PercentageStat struct {
	SubsetCount int64   `json:"subset_count"`
	TotalCount  int64   `json:"total_count"`
	Percentage  float64 `json:"percentage"`
}

// EmotionFrequency is one bucket of the emotion frequency aggregation.
type EmotionFrequency struct {
	Emotion string `json:"emotion"`
	Count   int64  `json:"count"`
}
