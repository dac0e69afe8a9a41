package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/blobstore"
	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

// Mode decides how an imported artifact meets the live collection.
type Mode string

const (
	// ModeReplace discards the live collection and its images.
	ModeReplace Mode = "replace"
	// ModeCombine keeps every live entry and appends imported entries with unseen ids.
	ModeCombine Mode = "combine"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeCombine:
		return ModeCombine, nil
	default:
		return "", fmt.Errorf("unknown import mode %q, must be %q or %q", s, ModeReplace, ModeCombine)
	}
}

// ImageWrite is one blob the import has to create.
type ImageWrite struct {
	Filename string
	Data     []byte
}

// Plan is the outcome of reconciliation before anything touches storage.
type Plan struct {
	Mode Mode
	// Entries is the new collection for ModeReplace, or the entries to append, in
	// artifact order, for ModeCombine.
	Entries []models.Entry
	Writes  []ImageWrite
	// Skipped counts imported entries dropped for a missing, repeated or already
	// present id.
	Skipped int
	// InvalidImages counts entries whose inline image was not valid base64.
	InvalidImages int
}

// NewPlan decides the import without side effects. Every imported image gets a fresh
// name from newFilename, so imported blobs never collide with live ones.
//
// Within one artifact the first occurrence of an id wins. In ModeCombine an id that is
// already live keeps the live entry untouched.
func NewPlan(existing []models.Entry, imported []TransportEntry, mode Mode, newFilename func() string) Plan {
	plan := Plan{Mode: mode}

	seen := make(map[string]struct{}, len(imported)+len(existing))
	if mode == ModeCombine {
		for _, e := range existing {
			seen[e.ID] = struct{}{}
		}
	}

	for _, t := range imported {
		if t.ID == "" {
			plan.Skipped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			plan.Skipped++
			continue
		}
		seen[t.ID] = struct{}{}

		entry := t.Entry()
		if t.ImageBase64 != nil {
			if data, ok := t.Image(); ok {
				filename := newFilename()
				entry.ImageFilename = &filename
				plan.Writes = append(plan.Writes, ImageWrite{Filename: filename, Data: data})
			} else {
				plan.InvalidImages++
			}
		}
		plan.Entries = append(plan.Entries, entry)
	}
	return plan
}

// Result is the collection the plan produces on top of existing.
func (p Plan) Result(existing []models.Entry) []models.Entry {
	if p.Mode == ModeReplace {
		return append([]models.Entry(nil), p.Entries...)
	}
	out := make([]models.Entry, 0, len(existing)+len(p.Entries))
	out = append(out, existing...)
	return append(out, p.Entries...)
}

// Apply writes the plan's images. A failed write is logged and the owning entry loses
// its image reference; the returned entries reflect that.
func Apply(ctx context.Context, blobs blobstore.BlobStore, plan Plan) []models.Entry {
	failed := make(map[string]struct{})
	for _, w := range plan.Writes {
		if err := blobs.Write(ctx, w.Filename, w.Data); err != nil {
			slog.Error("failed to write imported image", "filename", w.Filename, "error", err)
			failed[w.Filename] = struct{}{}
		}
	}

	entries := make([]models.Entry, len(plan.Entries))
	for i, e := range plan.Entries {
		if e.HasImage() {
			if _, bad := failed[*e.ImageFilename]; bad {
				e.ImageFilename = nil
			}
		}
		entries[i] = e
	}
	return entries
}

// Discard removes the images of entries that were written but never committed.
func Discard(ctx context.Context, blobs blobstore.BlobStore, entries []models.Entry) error {
	var errs []error
	for _, e := range entries {
		if !e.HasImage() {
			continue
		}
		if err := blobs.Delete(ctx, *e.ImageFilename); err != nil {
			errs = append(errs, fmt.Errorf("failed to discard %s: %w", *e.ImageFilename, err))
		}
	}
	return errors.Join(errs...)
}

// PurgeOrphans deletes every blob that none of keep references and returns how many
// were removed.
func PurgeOrphans(ctx context.Context, blobs blobstore.BlobStore, keep []models.Entry) (int, error) {
	names, err := blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}
	referenced := make(map[string]struct{}, len(keep))
	for _, e := range keep {
		if e.HasImage() {
			referenced[*e.ImageFilename] = struct{}{}
		}
	}

	if len(referenced) == 0 && len(names) > 0 {
		if err := blobs.Clear(ctx); err != nil {
			return 0, fmt.Errorf("failed to clear blobs: %w", err)
		}
		slog.Info("purged orphaned images", "count", len(names))
		return len(names), nil
	}

	removed := 0
	var errs []error
	for _, name := range names {
		if _, ok := referenced[name]; ok {
			continue
		}
		if err := blobs.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete orphan %s: %w", name, err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("purged orphaned images", "count", removed)
	}
	return removed, errors.Join(errs...)
}
