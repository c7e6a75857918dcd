package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxItemsSummaryLength is counted in runes, the ellipsis included.
	MaxItemsSummaryLength = 280
	ellipsis              = "…"
)

type Order struct {
	ID              uuid.UUID   `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	Number          string      `json:"number"`
	Total           int64       `json:"total"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	ItemsSummary    string      `json:"items_summary"`
	StripeSessionID string      `json:"stripe_session_id"`
	PointsApplied   int64       `json:"points_applied"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderNumber formats PREFIX-YYYYMMDD-RRRR using the UTC date of now.
func OrderNumber(prefix string, now time.Time, suffix int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.UTC().Format("20060102"), suffix%10000)
}

// ItemsSummary joins "name ×quantity" fragments and truncates the result to
// MaxItemsSummaryLength runes.
func ItemsSummary(items []LineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s ×%d", item.Name, item.Quantity))
	}
	summary := strings.Join(parts, ", ")
	if utf8.RuneCountInString(summary) <= MaxItemsSummaryLength {
		return summary
	}
	runes := []rune(summary)
	return string(runes[:MaxItemsSummaryLength-utf8.RuneCountInString(ellipsis)]) + ellipsis
}
