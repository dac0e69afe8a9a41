// Package models defines the inventory record shared by the repository, the backup
// codec and the API.
package models

import (
	"math"
	"strings"
	"time"
)

// DisplayDateLayout renders buy dates the way the list screen shows them.
const DisplayDateLayout = "01/02/2006"

// Entry is one inventory record. Absent optional values are nil pointers.
//
// ImageFilename is a weak handle into the blob store: the blob may have been removed
// behind the entry's back, so readers treat a missing blob as "no image".
type Entry struct {
	ID            string     `json:"id"`
	ImageFilename *string    `json:"imageFilename,omitempty"`
	Name          *string    `json:"name,omitempty"`
	Price         *float64   `json:"price,omitempty"`
	Quantity      *int       `json:"quantity,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	Tags          *string    `json:"tags,omitempty"`
	BuyDate       *time.Time `json:"buyDate,omitempty"`
}

// HasImage reports whether the entry carries an image handle.
func (e Entry) HasImage() bool {
	return e.ImageFilename != nil && *e.ImageFilename != ""
}

// Normalized trims the free-text fields, turns blank ones into nil and drops a
// non-finite price. ID and ImageFilename are left alone.
func (e Entry) Normalized() Entry {
	e.Name = NormalizeString(e.Name)
	e.Description = NormalizeString(e.Description)
	e.Notes = NormalizeString(e.Notes)
	e.Tags = NormalizeString(e.Tags)
	e.Price = NormalizePrice(e.Price)
	return e
}

// NormalizeString returns nil for nil or whitespace-only input, otherwise a pointer to
// the trimmed copy.
func NormalizeString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// NormalizePrice drops NaN and infinities, which JSON cannot represent.
func NormalizePrice(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}

// SearchText is the lowercased haystack keyword search runs against.
func (e Entry) SearchText() string {
	parts := make([]string, 0, 4)
	for _, field := range []*string{e.Name, e.Description, e.Notes, e.Tags} {
		if field != nil {
			parts = append(parts, strings.ToLower(*field))
		}
	}
	return strings.Join(parts, " ")
}

// FormatBuyDate returns the buy date as MM/dd/yyyy, or "" when unset.
func (e Entry) FormatBuyDate() string {
	if e.BuyDate == nil {
		return ""
	}
	return e.BuyDate.Format(DisplayDateLayout)
}

// Ptr returns a pointer to v; handy for building entries in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
