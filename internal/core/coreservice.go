package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/backup"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/blobstore"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/database"
	"github.com/MabzGamesStudio/StorageLogger/internal/backend/imagecodec"
	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	blobStore       blobstore.BlobStore
	backupCodec     *backup.Codec
	repository      *EntryRepository
	adCounter       *AdCounter

	// busy is set while an import or export runs. Mutations hold gate for reading,
	// imports and exports for writing.
	busy atomic.Bool
	gate sync.RWMutex
}

// SaveResult is returned by AddEntry and UpdateEntry.
type SaveResult struct {
	Entry  models.Entry
	ShowAd bool
}

type ImportResult struct {
	Mode          backup.Mode
	Imported      int
	Skipped       int
	InvalidImages int
	Total         int
}

func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}
	service, err := newCoreService(ctx, config, databaseService)
	if err != nil {
		return nil, errors.Join(err, databaseService.Close())
	}
	return service, nil
}

func newCoreService(ctx context.Context, config *ServiceConfig, databaseService database.DatabaseService) (*CoreService, error) {
	blobStore, err := blobstore.NewBlobStore(ctx, config.BlobStore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	imageCodec, err := imagecodec.NewCodec(config.Image)
	if err != nil {
		return nil, err
	}
	backupCodec, err := backup.NewCodec(config.Backup)
	if err != nil {
		return nil, err
	}
	repository, err := NewEntryRepository(ctx, databaseService, blobStore, imageCodec)
	if err != nil {
		return nil, err
	}
	slog.Info("core service initialized", "blobStore", config.BlobStore.Type, "compression", config.Backup.Compression)
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		blobStore:       blobStore,
		backupCodec:     backupCodec,
		repository:      repository,
		adCounter:       NewAdCounter(databaseService, config.Ad.Threshold),
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

// ListEntries returns all entries, or those matching query when it is not blank.
func (service *CoreService) ListEntries(query string) []models.Entry {
	return service.repository.Search(query)
}

func (service *CoreService) GetEntry(id string) (models.Entry, error) {
	entry, ok := service.repository.Get(id)
	if !ok {
		return models.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// EntryImage returns the stored JPEG of an entry. ErrNotFound covers an unknown entry, an
// entry without image and a dangling handle.
func (service *CoreService) EntryImage(ctx context.Context, id string) ([]byte, error) {
	return service.repository.Image(ctx, id)
}

func (service *CoreService) AddEntry(ctx context.Context, entry models.Entry, image []byte) (SaveResult, error) {
	release, err := service.beginMutation()
	if err != nil {
		return SaveResult{}, err
	}
	defer release()
	added, err := service.repository.Add(ctx, entry, image)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Entry: added, ShowAd: service.registerSave(ctx)}, nil
}

// UpdateEntry replaces the fields of an existing entry. The previous image is dropped
// unless image carries a new one.
func (service *CoreService) UpdateEntry(ctx context.Context, id string, fields models.Entry, image []byte) (SaveResult, error) {
	release, err := service.beginMutation()
	if err != nil {
		return SaveResult{}, err
	}
	defer release()
	updated, ok, err := service.repository.Update(ctx, id, fields, image)
	if err != nil {
		return SaveResult{}, err
	}
	if !ok {
		return SaveResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return SaveResult{Entry: updated, ShowAd: service.registerSave(ctx)}, nil
}

func (service *CoreService) DeleteEntry(ctx context.Context, id string) error {
	release, err := service.beginMutation()
	if err != nil {
		return err
	}
	defer release()
	ok, err := service.repository.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// beginMutation admits a single-entry change unless an import or export holds the
// collection. The returned func ends the mutation.
func (service *CoreService) beginMutation() (func(), error) {
	if service.busy.Load() {
		return nil, ErrOperationInProgress
	}
	service.gate.RLock()
	if service.busy.Load() {
		service.gate.RUnlock()
		return nil, ErrOperationInProgress
	}
	return service.gate.RUnlock, nil
}

// beginBulk claims the collection for an import or export. It waits for mutations
// already admitted to finish; new ones are rejected until the returned func runs.
func (service *CoreService) beginBulk() (func(), error) {
	if !service.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInProgress
	}
	service.gate.Lock()
	return func() {
		service.gate.Unlock()
		service.busy.Store(false)
	}, nil
}

// registerSave advances the ad counter; a counter failure never fails the save.
func (service *CoreService) registerSave(ctx context.Context) bool {
	showAd, err := service.adCounter.RegisterSave(ctx)
	if err != nil {
		slog.Warn("failed to update ad counter", "error", err)
		return false
	}
	return showAd
}

// Export builds a backup artifact of the whole collection.
func (service *CoreService) Export(ctx context.Context) ([]byte, error) {
	release, err := service.beginBulk()
	if err != nil {
		return nil, err
	}
	defer release()

	return service.backupCodec.Export(ctx, service.repository.List(), service.blobStore)
}

// ExportFilename is the suggested download name for Export's artifact.
func (service *CoreService) ExportFilename() string {
	return service.backupCodec.Filename()
}

// Import reconciles artifact with the live collection. A corrupt artifact returns an
// error wrapping backup.ErrCorruptArtifact and changes nothing.
//
// ModeReplace commits the new collection in one write and only then purges the images
// it does not reference. ModeCombine appends entries one at a time; when an append
// fails the entries appended before it stay.
func (service *CoreService) Import(ctx context.Context, artifact []byte, mode backup.Mode) (ImportResult, error) {
	release, err := service.beginBulk()
	if err != nil {
		return ImportResult{}, err
	}
	defer release()

	if mode != backup.ModeReplace && mode != backup.ModeCombine {
		return ImportResult{}, fmt.Errorf("unknown import mode %q", mode)
	}
	imported, err := service.backupCodec.Decode(artifact)
	if err != nil {
		return ImportResult{}, err
	}

	plan := backup.NewPlan(service.repository.List(), imported, mode, imagecodec.NewFilename)
	entries := backup.Apply(ctx, service.blobStore, plan)
	result := ImportResult{Mode: mode, Skipped: plan.Skipped, InvalidImages: plan.InvalidImages}

	switch mode {
	case backup.ModeReplace:
		if err := service.repository.ReplaceAll(ctx, entries); err != nil {
			service.discard(ctx, entries)
			return ImportResult{}, fmt.Errorf("failed to replace entries: %w", err)
		}
		result.Imported = len(entries)
		if _, err := backup.PurgeOrphans(ctx, service.blobStore, entries); err != nil {
			slog.Warn("failed to purge replaced images", "error", err)
		}
	case backup.ModeCombine:
		for i, entry := range entries {
			added, err := service.repository.Append(ctx, entry)
			if err != nil {
				service.discard(ctx, entries[i:])
				return ImportResult{}, fmt.Errorf("failed to append entry %s: %w", entry.ID, err)
			}
			if !added {
				service.discard(ctx, entries[i:i+1])
				result.Skipped++
				continue
			}
			result.Imported++
		}
	}

	result.Total = len(service.repository.List())
	slog.Info("import finished", "mode", mode, "imported", result.Imported,
		"skipped", result.Skipped, "invalidImages", result.InvalidImages, "total", result.Total)
	return result, nil
}

func (service *CoreService) discard(ctx context.Context, entries []models.Entry) {
	if err := backup.Discard(ctx, service.blobStore, entries); err != nil {
		slog.Warn("failed to discard imported images", "error", err)
	}
}
