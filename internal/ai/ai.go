// Package ai turns free text and receipt photos into transaction drafts
// the user reviews before saving.
package ai

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/core"
)

var (
	// ErrNoDrafts is returned when the model found nothing to record.
	ErrNoDrafts = errors.New("no transactions found in input")
	// ErrUpstream wraps failures of the model call itself.
	ErrUpstream = errors.New("ai upstream error")
	// ErrUnsupportedImage is returned for uploads that are not JPEG or PNG.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrEmptyInput is returned for blank text or zero-length images.
	ErrEmptyInput = errors.New("empty input")
)

// Draft is a proposed transaction. Nothing about it is persisted until
// the user commits it.
type Draft struct {
	Date          core.Date  `json:"date"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Amount        core.Money `json:"amount"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
}

// Transaction converts the draft for the regular create path.
func (d Draft) Transaction() core.Transaction {
	pm := strings.TrimSpace(d.PaymentMethod)
	if pm == "" {
		pm = core.PaymentMethodAIDraft
	}
	return core.Transaction{
		Date:          d.Date,
		Description:   strings.TrimSpace(d.Description),
		Category:      strings.TrimSpace(d.Category),
		Amount:        d.Amount,
		PaymentMethod: pm,
	}
}

// Parser extracts drafts. today anchors relative dates ("yesterday") and
// fills in drafts the model left undated.
type Parser interface {
	ParseText(ctx context.Context, text string, today core.Date) ([]Draft, error)
	ParseImage(ctx context.Context, data []byte, today core.Date) ([]Draft, error)
}
