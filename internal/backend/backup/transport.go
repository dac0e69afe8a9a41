package backup

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

// Timestamp marshals as ISO-8601 with second precision in UTC.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts any RFC 3339 value, fractional seconds included.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC().Truncate(time.Second)
	return nil
}

// TransportEntry is the self-contained form of an entry inside a backup artifact: the
// image travels inline as base64 instead of as a blob store handle.
type TransportEntry struct {
	ID          string     `json:"id"`
	ImageBase64 *string    `json:"imageBase64,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Quantity    *int       `json:"quantity,omitempty"`
	Description *string    `json:"description,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Tags        *string    `json:"tags,omitempty"`
	BuyDate     *Timestamp `json:"buyDate,omitempty"`
}

// NewTransportEntry copies the entry's fields; image may be nil.
func NewTransportEntry(e models.Entry, image []byte) TransportEntry {
	t := TransportEntry{
		ID:          e.ID,
		Name:        e.Name,
		Price:       models.NormalizePrice(e.Price),
		Quantity:    e.Quantity,
		Description: e.Description,
		Notes:       e.Notes,
		Tags:        e.Tags,
	}
	if e.BuyDate != nil {
		t.BuyDate = &Timestamp{Time: e.BuyDate.UTC().Truncate(time.Second)}
	}
	if len(image) > 0 {
		encoded := base64.StdEncoding.EncodeToString(image)
		t.ImageBase64 = &encoded
	}
	return t
}

// Entry returns the entry fields without any image handle.
func (t TransportEntry) Entry() models.Entry {
	e := models.Entry{
		ID:          t.ID,
		Name:        t.Name,
		Price:       t.Price,
		Quantity:    t.Quantity,
		Description: t.Description,
		Notes:       t.Notes,
		Tags:        t.Tags,
	}
	if t.BuyDate != nil {
		buyDate := t.BuyDate.Time
		e.BuyDate = &buyDate
	}
	return e.Normalized()
}

// Image decodes the inline image. ok is false when there is none or it is not valid
// base64.
func (t TransportEntry) Image() (data []byte, ok bool) {
	if t.ImageBase64 == nil || *t.ImageBase64 == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(*t.ImageBase64)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
