package internal

import (
	"encoding/json"
	"time"
)

type MatchStatus string

const (
	MatchUnmatched MatchStatus = "unmatched"
	MatchAuto      MatchStatus = "auto_matched"
	MatchPotential MatchStatus = "potential_match"
	MatchVerified  MatchStatus = "verified_match"
)

type Decision string

const (
	DecisionNoMatch  Decision = "no_match"
	DecisionAuto     Decision = "auto_matched"
	DecisionReview   Decision = "review"
	DecisionRejected Decision = "rejected"
	DecisionError    Decision = "error"
)

type ProductStatus string

const (
	ProductDraft  ProductStatus = "draft"
	ProductActive ProductStatus = "active"
)

type Item struct {
	ID              int64
	SupplierID      int64
	Name            string
	CurrentPrice    float64
	Characteristics map[string]string
	ProductID       *int64
	MatchStatus     MatchStatus
	MatchScore      *float64
}

type Product struct {
	ID          int64
	InternalSKU string
	Name        string
	CategoryID  *int64
	Status      ProductStatus
}

type MatchCandidate struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Score       float64 `json:"score"`
	CategoryID  *int64  `json:"categoryId"`
}

// Candidates are sorted descending by score; Best aliases Candidates[0]
// when non-empty.
type MatchResult struct {
	ItemID     int64
	Status     MatchStatus
	Best       *MatchCandidate
	Candidates []MatchCandidate
	Score      *float64
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewExpired  ReviewStatus = "expired"
)

type ReviewEntry struct {
	ID         int64
	ItemID     int64
	Candidates []MatchCandidate
	Status     ReviewStatus
	ExpiresAt  time.Time
	ReviewedAt *time.Time
}

type Supplier struct {
	ID           int64
	Code         string
	Name         string
	CategoryHint string
	Active       bool
}

// SupplierConfig is one row of the external supplier configuration set.
type SupplierConfig struct {
	Code         string
	Name         string
	CategoryHint string
}

type Task struct {
	TaskID     string          `json:"taskId"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	TryCount   int             `json:"tryCount"`
	MaxTries   int             `json:"maxTries"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

type RunStatus string

const (
	RunSuccess        RunStatus = "success"
	RunPartialSuccess RunStatus = "partial_success"
	RunError          RunStatus = "error"
)

type RunSummary struct {
	RunID       string
	Created     int
	Updated     int
	Deactivated int
	Enqueued    int
	Failed      int
	Errors      []string
	Status      RunStatus
}

// Overall derives the run status: no errors is success, errors with some
// progress is partial, no progress at all is error.
func (s *RunSummary) Overall() RunStatus {
	progress := s.Created + s.Updated + s.Deactivated + s.Enqueued
	switch {
	case len(s.Errors) == 0:
		return RunSuccess
	case progress > 0:
		return RunPartialSuccess
	default:
		return RunError
	}
}
