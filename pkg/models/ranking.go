package models

import "time"

// CandidateItem is one feed candidate handed to the ranking orchestrator.
// Perceptual features arrive precomputed from the external extractor.
type CandidateItem struct {
	ContentID      string    `json:"content_id"`
	Text           string    `json:"text,omitempty"`
	Category       string    `json:"category,omitempty"`
	Hashtags       []string  `json:"hashtags,omitempty"`
	MediaTypes     []string  `json:"media_types,omitempty"`
	QualityScore   float64   `json:"quality_score"`
	EngagementRate float64   `json:"engagement_rate"`
	CreatedAt      time.Time `json:"created_at"`
	Features       []float64 `json:"features,omitempty"`
}

// ComponentScores holds the five independent per-item scores that the
// orchestrator fuses into the final ranking score.
type ComponentScores struct {
	ContentBased  float64 `json:"content_based"`
	Collaborative float64 `json:"collaborative"`
	RealTime      float64 `json:"real_time"`
	UserInterests float64 `json:"user_interests"`
	Freshness     float64 `json:"freshness"`
}

// RankedItem is one entry of the final ordered ranking result.
type RankedItem struct {
	ContentID       string          `json:"content_id"`
	FinalScore      float64         `json:"final_score"`
	Confidence      float64         `json:"confidence"`
	RankingMethod   string          `json:"ranking_method"`
	Explanation     string          `json:"explanation"`
	ComponentScores ComponentScores `json:"component_scores"`
}

// RankRequest is the ranking operation input.
type RankRequest struct {
	UserID     string          `json:"user_id" binding:"required"`
	Candidates []CandidateItem `json:"candidates" binding:"required,min=1"`
	Limit      int             `json:"limit" binding:"min=1,max=100"`
}

// RankResponse wraps a ranking result with request metadata.
type RankResponse struct {
	UserID      string       `json:"user_id"`
	Items       []RankedItem `json:"items"`
	Method      string       `json:"method"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// UserInsights summarizes how the engine currently sees a user.
type UserInsights struct {
	UserID            string   `json:"user_id"`
	ColdStartActive   bool     `json:"cold_start_active"`
	ColdStartBoost    float64  `json:"cold_start_boost"`
	Interests         []string `json:"interests,omitempty"`
	InterestDiversity float64  `json:"interest_diversity"`
	InteractionCount  int      `json:"interaction_count"`
	RankingMethod     string   `json:"ranking_method"`
}
