package models

import (
	"time"

	"govdash/pkg/domain"
)

// Factors are the four component scores of a compliance computation, each in [0, 100].
type Factors struct {
	Documents   int `json:"documents"`
	Inspections int `json:"inspections"`
	Reviews     int `json:"reviews"`
	History     int `json:"history"`
}

// HistoryRecord is one append-only compliance computation result.
type HistoryRecord struct {
	ShopID     domain.ShopID    `json:"shop_id"`
	Score      int              `json:"score"`
	Status     ComplianceStatus `json:"status"`
	Factors    Factors          `json:"factors"`
	RecordedAt time.Time        `json:"recorded_at"`
}
