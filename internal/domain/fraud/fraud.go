package fraud

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Severity classifies how urgent an alert is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus represents the review state of an alert
type AlertStatus string

const (
	AlertOpen     AlertStatus = "open"
	AlertReviewed AlertStatus = "reviewed"
)

// Alert is a flagged anomaly, optionally blocking the bid that raised it
type Alert struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	AuctionID       *uuid.UUID     `json:"auction_id,omitempty"`
	BidID           *uuid.UUID     `json:"bid_id,omitempty"`
	Type            string         `json:"type"`
	Severity        Severity       `json:"severity"`
	Status          AlertStatus    `json:"status"`
	Evidence        map[string]any `json:"evidence,omitempty"`
	ReviewerID      *uuid.UUID     `json:"reviewer_id,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
}

// Review closes the alert with the reviewer's resolution
func (a *Alert) Review(reviewerID uuid.UUID, notes string, now time.Time) {
	a.Status = AlertReviewed
	a.ReviewerID = &reviewerID
	a.ResolutionNotes = notes
	a.ReviewedAt = &now
}

// BidContext is the side-effect-free input handed to a fraud policy when a
// bid attempt is evaluated
type BidContext struct {
	BidderID       uuid.UUID
	AuctionID      uuid.UUID
	Amount         decimal.Decimal
	IPAddress      string
	UserAgent      string
	RecentBidCount int
	OpenAlertCount int
	At             time.Time
}
