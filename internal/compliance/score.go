// Package compliance computes shop compliance scores.
//
// score = round(0.40*documents + 0.30*inspections + 0.20*reviews + 0.10*history)
//
// Every factor lies in [0, 100]. Score is pure; Service.Recompute gathers its
// inputs, persists the result and appends one history record per call.
package compliance

import (
	"sort"
	"time"

	"govdash/internal/registry/models"
)

// Factor weights in percent.
const (
	WeightDocuments   = 40
	WeightInspections = 30
	WeightReviews     = 20
	WeightHistory     = 10

	// RecentInspections is how many completed inspections feed the inspection factor.
	RecentInspections = 3

	// maxDecline is the score drop at which the history factor reaches zero.
	maxDecline = 50
)

const (
	FactorDocuments   = "documents"
	FactorInspections = "inspections"
	FactorReviews     = "reviews"
	FactorHistory     = "history"
)

// Inputs is everything a computation depends on.
type Inputs struct {
	Now           time.Time
	RequiredTypes []models.DocumentType
	Documents     []*models.Document
	// Inspections are completed inspections; only the most recent
	// RecentInspections by completion time count.
	Inspections []*models.Inspection
	Reviews     []*models.Review
	// Previous is the latest history record, nil for a first computation.
	Previous *models.HistoryRecord
}

// Result is the outcome of one computation.
type Result struct {
	Score           int                     `json:"score"`
	Status          models.ComplianceStatus `json:"status"`
	Factors         models.Factors          `json:"factors"`
	Recommendations []string                `json:"recommendations"`
}

// Score computes a compliance result. Equal inputs always give equal results.
func Score(in Inputs) Result {
	f := models.Factors{
		Documents:   documentFactor(in.RequiredTypes, in.Documents, in.Now),
		Inspections: inspectionFactor(in.Inspections),
		Reviews:     reviewFactor(in.Reviews),
		History:     100,
	}
	if in.Previous != nil {
		candidate := weighted(f)
		f.History = historyFactor(candidate, in.Previous.Score)
	}
	score := weighted(f)
	return Result{
		Score:           score,
		Status:          StatusFor(score),
		Factors:         f,
		Recommendations: Recommend(f),
	}
}

// StatusFor maps a score to its band: >=70 compliant, 50-69 warning,
// below 50 non_compliant.
func StatusFor(score int) models.ComplianceStatus {
	switch {
	case score >= 70:
		return models.ComplianceStatusCompliant
	case score >= 50:
		return models.ComplianceStatusWarning
	default:
		return models.ComplianceStatusNonCompliant
	}
}

// weighted rounds half up in integer arithmetic so results never depend on
// float representation.
func weighted(f models.Factors) int {
	sum := WeightDocuments*f.Documents + WeightInspections*f.Inspections +
		WeightReviews*f.Reviews + WeightHistory*f.History
	return clamp((sum + 50) / 100)
}

// documentFactor counts required types whose newest reviewed document is
// approved and unexpired. A rejected or expired one counts zero for its type.
// Pending uploads awaiting review never displace the reviewed document.
func documentFactor(required []models.DocumentType, docs []*models.Document, now time.Time) int {
	if len(required) == 0 {
		return 100
	}
	newest := make(map[models.DocumentType]*models.Document, len(required))
	for _, d := range docs {
		if d.Status == models.DocumentStatusPending {
			continue
		}
		if cur, ok := newest[d.Type]; !ok || d.CreatedAt.After(cur.CreatedAt) {
			newest[d.Type] = d
		}
	}
	valid := 0
	for _, t := range required {
		if d, ok := newest[t]; ok && d.IsValidAt(now) {
			valid++
		}
	}
	return roundDiv(valid*100, len(required))
}

// inspectionFactor averages the most recent completed inspection scores; a
// shop with none is not penalized.
func inspectionFactor(inspections []*models.Inspection) int {
	completed := make([]*models.Inspection, 0, len(inspections))
	for _, i := range inspections {
		if i.IsCompleted() && i.CompletedAt != nil {
			completed = append(completed, i)
		}
	}
	if len(completed) == 0 {
		return 100
	}
	sort.SliceStable(completed, func(a, b int) bool {
		return completed[a].CompletedAt.After(*completed[b].CompletedAt)
	})
	if len(completed) > RecentInspections {
		completed = completed[:RecentInspections]
	}
	sum := 0
	for _, i := range completed {
		sum += clamp(*i.Score)
	}
	return roundDiv(sum, len(completed))
}

// reviewFactor is the mean rating scaled by 20, so five stars is 100.
func reviewFactor(reviews []*models.Review) int {
	if len(reviews) == 0 {
		return 100
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return clamp(roundDiv(sum*20, len(reviews)))
}

// historyFactor is 100 for a stable or improving trend and falls by two
// points per point of decline, reaching 0 at a 50-point drop.
func historyFactor(candidate, previous int) int {
	if candidate >= previous {
		return 100
	}
	decline := previous - candidate
	if decline >= maxDecline {
		return 0
	}
	return 100 - decline*100/maxDecline
}

func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}

func clamp(v int) int {
	return max(0, min(100, v))
}

var recommendations = map[string]string{
	FactorDocuments:   "Upload and renew all required documents (business license, tax clearance, health certificate).",
	FactorInspections: "Address issues raised in recent inspections and request a follow-up inspection.",
	FactorReviews:     "Respond to customer feedback to improve review ratings.",
	FactorHistory:     "Compliance is declining; review recent changes to documents and inspection results.",
}

// Recommend returns the suggestion for the lowest factor. Ties go to the
// earlier factor in documents, inspections, reviews, history order. A shop
// with every factor at 100 gets none.
func Recommend(f models.Factors) []string {
	order := []struct {
		name  string
		value int
	}{
		{FactorDocuments, f.Documents},
		{FactorInspections, f.Inspections},
		{FactorReviews, f.Reviews},
		{FactorHistory, f.History},
	}
	lowest := order[0]
	for _, o := range order[1:] {
		if o.value < lowest.value {
			lowest = o
		}
	}
	if lowest.value >= 100 {
		return []string{}
	}
	return []string{recommendations[lowest.name]}
}
