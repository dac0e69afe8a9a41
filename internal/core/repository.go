package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/blobstore"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/database"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/imagecodec"
	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

const entriesKey = "entries"

// ImageEncoder turns raw picture bytes into the blob that gets stored.
type ImageEncoder interface {
	Encode(raw []byte) ([]byte, error)
}

// EntryRepository owns the live entry collection. Every mutation rewrites the whole
// collection under one key; if that write fails the mutation is undone in memory and
// the error is returned.
//
// Image problems never fail a mutation: the entry is kept without an image and the
// failure is logged.
type EntryRepository struct {
	mu      sync.Mutex
	entries []models.Entry

	database database.DatabaseService
	blobs    blobstore.BlobStore
	encoder  ImageEncoder

	newID       func() string
	newFilename func() string
}

// NewEntryRepository loads the persisted collection. A missing key yields an empty
// collection, as does an unreadable value (which is logged and left in place until the
// next mutation overwrites it).
func NewEntryRepository(ctx context.Context, db database.DatabaseService, blobs blobstore.BlobStore, encoder ImageEncoder) (*EntryRepository, error) {
	r := &EntryRepository{
		database:    db,
		blobs:       blobs,
		encoder:     encoder,
		newID:       uuid.NewString,
		newFilename: imagecodec.NewFilename,
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *EntryRepository) load(ctx context.Context) error {
	data, err := r.database.Get(ctx, entriesKey)
	if errors.Is(err, database.ErrNotFound) {
		slog.Debug("no persisted entries, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}

	var entries []models.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Error("persisted entries are unreadable, starting empty", "error", err)
		return nil
	}
	r.entries = dedupe(entries)
	slog.Info("loaded entries", "count", len(r.entries))
	return nil
}

// List returns a copy of the collection in insertion order.
func (r *EntryRepository) List() []models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

func (r *EntryRepository) Get(id string) (models.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.entries[i], true
	}
	return models.Entry{}, false
}

// Search returns the entries whose name, description, notes and tags together contain
// every whitespace-separated keyword of query, ignoring case. An empty query matches
// everything.
func (r *EntryRepository) Search(query string) []models.Entry {
	keywords := strings.Fields(strings.ToLower(query))
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(keywords) == 0 {
		return slices.Clone(r.entries)
	}
	var out []models.Entry
	for _, e := range r.entries {
		if matchesAll(e.SearchText(), keywords) {
			out = append(out, e)
		}
	}
	return out
}

func matchesAll(text string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

// Add stores a new entry. An empty ID is replaced by a fresh one; an ID already in use
// yields ErrAlreadyExists. Any ImageFilename on entry is ignored, the image comes from
// rawImage only.
func (r *EntryRepository) Add(ctx context.Context, entry models.Entry, rawImage []byte) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry = entry.Normalized()
	if entry.ID == "" {
		entry.ID = r.newID()
	}
	if r.indexOf(entry.ID) >= 0 {
		return models.Entry{}, fmt.Errorf("%w: %s", ErrAlreadyExists, entry.ID)
	}
	entry.ImageFilename = r.storeImage(ctx, rawImage)

	prev := r.entries
	r.entries = append(slices.Clone(prev), entry)
	if err := r.persist(ctx); err != nil {
		r.entries = prev
		r.deleteImage(ctx, entry)
		return models.Entry{}, err
	}
	slog.Info("added entry", "id", entry.ID, "image", entry.HasImage())
	return entry, nil
}

// Update replaces every field of the entry with id by fields. The current image is
// always dropped; a new one is attached only when rawImage is non-empty. An unknown id
// is a no-op reported by ok == false.
func (r *EntryRepository) Update(ctx context.Context, id string, fields models.Entry, rawImage []byte) (updated models.Entry, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Entry{}, false, nil
	}
	old := r.entries[i]

	updated = fields.Normalized()
	updated.ID = id
	updated.ImageFilename = r.storeImage(ctx, rawImage)

	r.entries[i] = updated
	if err := r.persist(ctx); err != nil {
		r.entries[i] = old
		r.deleteImage(ctx, updated)
		return models.Entry{}, true, err
	}
	r.deleteImage(ctx, old)
	slog.Info("updated entry", "id", id, "image", updated.HasImage())
	return updated, true, nil
}

// Remove deletes the entry and its image. An unknown id is a no-op reported by
// ok == false.
func (r *EntryRepository) Remove(ctx context.Context, id string) (ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	prev := r.entries
	removed := prev[i]
	r.entries = slices.Delete(slices.Clone(prev), i, i+1)
	if err := r.persist(ctx); err != nil {
		r.entries = prev
		return true, err
	}
	r.deleteImage(ctx, removed)
	slog.Info("removed entry", "id", id)
	return true, nil
}

// ReplaceAll swaps in entries as the whole collection. Image handles are taken as-is.
// Repeated ids keep their first occurrence.
func (r *EntryRepository) ReplaceAll(ctx context.Context, entries []models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.entries
	r.entries = dedupe(entries)
	if err := r.persist(ctx); err != nil {
		r.entries = prev
		return err
	}
	return nil
}

// Append adds entry unless its id is already present, in which case it returns false
// and changes nothing. The image handle is taken as-is.
func (r *EntryRepository) Append(ctx context.Context, entry models.Entry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" || r.indexOf(entry.ID) >= 0 {
		return false, nil
	}
	prev := r.entries
	r.entries = append(slices.Clone(prev), entry)
	if err := r.persist(ctx); err != nil {
		r.entries = prev
		return false, err
	}
	return true, nil
}

// Image returns the stored image of the entry with id. Both an unknown entry and a
// missing image yield ErrNotFound.
func (r *EntryRepository) Image(ctx context.Context, id string) ([]byte, error) {
	entry, ok := r.Get(id)
	if !ok || !entry.HasImage() {
		return nil, ErrNotFound
	}
	data, err := r.blobs.Read(ctx, *entry.ImageFilename)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image of entry %s: %w", id, err)
	}
	return data, nil
}

func (r *EntryRepository) indexOf(id string) int {
	return slices.IndexFunc(r.entries, func(e models.Entry) bool { return e.ID == id })
}

func (r *EntryRepository) persist(ctx context.Context) error {
	entries := r.entries
	if entries == nil {
		entries = []models.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	if err := r.database.Set(ctx, entriesKey, data); err != nil {
		slog.Error("failed to persist entries", "count", len(entries), "error", err)
		return fmt.Errorf("failed to persist entries: %w", err)
	}
	return nil
}

// storeImage encodes and writes rawImage, returning its handle or nil.
func (r *EntryRepository) storeImage(ctx context.Context, rawImage []byte) *string {
	if len(rawImage) == 0 {
		return nil
	}
	encoded, err := r.encoder.Encode(rawImage)
	if err != nil {
		slog.Warn("failed to encode image, storing entry without it", "error", err)
		return nil
	}
	filename := r.newFilename()
	if err := r.blobs.Write(ctx, filename, encoded); err != nil {
		slog.Error("failed to write image, storing entry without it", "filename", filename, "error", err)
		return nil
	}
	return &filename
}

func (r *EntryRepository) deleteImage(ctx context.Context, entry models.Entry) {
	if !entry.HasImage() {
		return
	}
	if err := r.blobs.Delete(ctx, *entry.ImageFilename); err != nil {
		slog.Warn("failed to delete image", "id", entry.ID, "filename", *entry.ImageFilename, "error", err)
	}
}

// dedupe copies entries, dropping empty and repeated ids.
func dedupe(entries []models.Entry) []models.Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup || e.ID == "" {
			slog.Warn("dropping entry with missing or repeated id", "id", e.ID)
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
