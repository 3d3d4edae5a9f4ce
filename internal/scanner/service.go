// Package scanner keeps the catalog in step with the enabled music folders.
//
// A run enumerates every enabled folder, diffs the discovered URIs against
// the catalog once, extracts metadata for new files in bounded concurrent
// batches and inserts the results one by one. Per-file and per-folder
// problems are counted in the run Summary; only a failure to read the
// folder registry or the catalog aborts a run.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"cadence/internal/catalog"
	"cadence/internal/library"
	"cadence/internal/storage"
	"cadence/internal/tags"
)

const EventProgress = "scanner:progress"

const DefaultBatchSize = 4

var ErrScanInProgress = errors.New("scan already in progress")

type Mode string

const (
	// ModeScan only adds files that are not in the catalog yet.
	ModeScan Mode = "scan"
	// ModeRefresh also deletes catalog songs that were not enumerated.
	ModeRefresh Mode = "refresh"
	// ModeStartup is ModeScan plus dropping folders that can no longer be
	// opened, together with their songs.
	ModeStartup Mode = "startup"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseEnumerating Phase = "enumerating"
	PhaseDiffing     Phase = "diffing"
	PhaseExtracting  Phase = "extracting"
	PhasePersisting  Phase = "persisting"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

type Progress struct {
	Mode      Mode   `json:"mode"`
	Phase     Phase  `json:"phase"`
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	At        string `json:"at"`
}

type ProgressFunc func(Progress)

type Emitter func(eventName string, payload any)

// ItemError records one file or folder that could not be processed.
type ItemError struct {
	URI   string `json:"uri"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

type Summary struct {
	Mode           Mode          `json:"mode"`
	FoldersScanned int           `json:"foldersScanned"`
	FoldersFailed  int           `json:"foldersFailed"`
	FilesSeen      int           `json:"filesSeen"`
	Added          int           `json:"added"`
	Degraded       int           `json:"degraded"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	Removed        int           `json:"removed"`
	RevokedFolders []string      `json:"revokedFolders,omitempty"`
	Cancelled      bool          `json:"cancelled"`
	Duration       time.Duration `json:"duration"`
	Errors         []ItemError   `json:"errors,omitempty"`
}

// RefreshSummary adds the symmetric-difference counts of a refresh run.
type RefreshSummary struct {
	Summary
	// Missing is the number of catalog songs not found during enumeration.
	Missing int `json:"missing"`
	// Protected counts missing songs kept because their folder failed to
	// enumerate in this run or is registered but disabled.
	Protected int `json:"protected"`
}

type Status struct {
	Running     bool     `json:"running"`
	Mode        Mode     `json:"mode,omitempty"`
	Phase       Phase    `json:"phase"`
	LastRunAt   string   `json:"lastRunAt,omitempty"`
	LastError   string   `json:"lastError,omitempty"`
	LastSummary *Summary `json:"lastSummary,omitempty"`
}

type Catalog interface {
	ListSongURIs(ctx context.Context) (map[string]string, error)
	AddSong(ctx context.Context, input catalog.NewSong) (catalog.Song, error)
	DeleteSongs(ctx context.Context, ids []string) (int, error)
}

type FolderSource interface {
	List(ctx context.Context) ([]library.Folder, error)
	ListEnabled(ctx context.Context) ([]library.Folder, error)
	Delete(ctx context.Context, id string) error
}

type MetadataExtractor interface {
	Extract(ctx context.Context, handle storage.FileHandle, fallbackTitle string) tags.Metadata
}

type Options struct {
	Provider   storage.Provider
	Catalog    Catalog
	Folders    FolderSource
	Extractor  MetadataExtractor
	Extensions storage.ExtensionTable
	BatchSize  int
	Logger     *slog.Logger
}

type Service struct {
	provider   storage.Provider
	catalog    Catalog
	folders    FolderSource
	extractor  MetadataExtractor
	extensions storage.ExtensionTable
	batchSize  int
	logger     *slog.Logger

	mu          sync.Mutex
	running     bool
	mode        Mode
	phase       Phase
	lastRun     time.Time
	lastError   string
	lastSummary *Summary
	emit        Emitter
	// failedFolders holds folder ids whose enumeration failed during this
	// session. Incremental scans skip them until ResetSession.
	failedFolders map[string]struct{}
}

func NewService(options Options) *Service {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Service{
		provider:      options.Provider,
		catalog:       options.Catalog,
		folders:       options.Folders,
		extractor:     options.Extractor,
		extensions:    options.Extensions,
		batchSize:     batchSize,
		logger:        logger,
		phase:         PhaseIdle,
		failedFolders: make(map[string]struct{}),
	}
}

func (s *Service) SetEmitter(emitter Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emitter
}

func (s *Service) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		Mode:      s.mode,
		Phase:     s.phase,
		LastError: s.lastError,
	}
	if !s.lastRun.IsZero() {
		status.LastRunAt = s.lastRun.UTC().Format(time.RFC3339)
	}
	if s.lastSummary != nil {
		summary := *s.lastSummary
		status.LastSummary = &summary
	}

	return status
}

// ResetSession forgets which folders failed earlier in this session.
func (s *Service) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedFolders = make(map[string]struct{})
}

// Scan adds files from enabled folders that the catalog does not know yet.
func (s *Service) Scan(ctx context.Context, progress ProgressFunc) (Summary, error) {
	result, err := s.run(ctx, ModeScan, progress)
	return result.Summary, err
}

// Refresh runs a full diff: songs whose URI was not enumerated are deleted
// before new files are processed. Songs under a folder that failed to
// enumerate are kept.
func (s *Service) Refresh(ctx context.Context, progress ProgressFunc) (RefreshSummary, error) {
	return s.run(ctx, ModeRefresh, progress)
}

// Startup is the lightweight pass run when the host starts.
func (s *Service) Startup(ctx context.Context, progress ProgressFunc) (Summary, error) {
	result, err := s.run(ctx, ModeStartup, progress)
	return result.Summary, err
}

type runState struct {
	mode     Mode
	progress ProgressFunc
	existing map[string]string
	seen     map[string]struct{}
	found    []storage.FileHandle
	failed   []library.Folder
	disabled []library.Folder
	result   RefreshSummary
}

func (s *Service) run(ctx context.Context, mode Mode, progress ProgressFunc) (RefreshSummary, error) {
	if err := s.begin(mode); err != nil {
		return RefreshSummary{}, err
	}

	started := time.Now()
	state := &runState{
		mode:     mode,
		progress: progress,
		seen:     make(map[string]struct{}),
		result:   RefreshSummary{Summary: Summary{Mode: mode}},
	}

	err := s.perform(ctx, state)
	state.result.Duration = time.Since(started)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		state.result.Cancelled = true
	}

	s.finish(state, err)
	return state.result, err
}

func (s *Service) begin(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrScanInProgress
	}
	s.running = true
	s.mode = mode
	s.phase = PhaseEnumerating
	s.lastError = ""
	return nil
}

func (s *Service) finish(state *runState, err error) {
	summary := state.result.Summary

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now().UTC()
	s.lastSummary = &summary
	if err != nil {
		s.phase = PhaseFailed
		s.lastError = err.Error()
	} else {
		s.phase = PhaseIdle
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("scan ended early", "mode", state.mode, "error", err, "added", summary.Added)
		s.report(state, PhaseFailed, err.Error(), 0, 0)
		return
	}

	s.logger.Info(
		"scan complete",
		"mode", state.mode,
		"folders", summary.FoldersScanned,
		"seen", summary.FilesSeen,
		"added", summary.Added,
		"degraded", summary.Degraded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"removed", summary.Removed,
		"duration", summary.Duration,
	)
	s.report(
		state,
		PhaseDone,
		fmt.Sprintf("Scan complete: %d added, %d removed, %d failed", summary.Added, summary.Removed, summary.Failed),
		0,
		0,
	)
}

func (s *Service) perform(ctx context.Context, state *runState) error {
	registered, err := s.folders.List(ctx)
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	folders, disabled := lo.FilterReject(registered, func(folder library.Folder, _ int) bool {
		return folder.Enabled
	})
	state.disabled = disabled

	// One snapshot per run keeps the diff linear in the number of files.
	state.existing, err = s.catalog.ListSongURIs(ctx)
	if err != nil {
		return fmt.Errorf("load catalog uris: %w", err)
	}

	s.setPhase(PhaseEnumerating)
	for index, folder := range folders {
		s.report(state, PhaseEnumerating, fmt.Sprintf("Scanning %s", folder.Name), index, len(folders))
		if err := s.enumerateFolder(ctx, state, folder); err != nil {
			return err
		}
	}

	s.setPhase(PhaseDiffing)
	s.report(state, PhaseDiffing, "Comparing with library", 0, len(state.found))
	if state.mode == ModeRefresh {
		if err := s.removeMissing(ctx, state); err != nil {
			return err
		}
	}

	pending := lo.Filter(state.found, func(handle storage.FileHandle, _ int) bool {
		_, known := state.existing[handle.URI]
		return !known
	})

	return s.processNew(ctx, state, pending)
}

func (s *Service) enumerateFolder(ctx context.Context, state *runState, folder library.Folder) error {
	if state.mode == ModeScan && s.folderFailed(folder.ID) {
		s.logger.Debug("skipping folder that failed earlier this session", "folder", folder.URI)
		return nil
	}

	handle := folder.Handle()
	if _, err := s.provider.RequestAccess(ctx, folder.URI); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return s.folderUnavailable(ctx, state, folder, err)
	}

	files := 0
	for file, err := range storage.Enumerate(ctx, s.provider, handle, storage.EnumerateOptions{Recursive: true, Extensions: s.extensions}) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			var enumerateErr *storage.EnumerateError
			if errors.As(err, &enumerateErr) && enumerateErr.Root {
				return s.folderUnavailable(ctx, state, folder, err)
			}

			s.logger.Warn("skipping unreadable subtree", "folder", folder.URI, "error", err)
			state.result.Errors = append(state.result.Errors, ItemError{URI: uriOf(err, folder.URI), Stage: "enumerate", Err: err.Error()})
			continue
		}

		files++
		if _, dup := state.seen[file.URI]; dup {
			continue
		}
		state.seen[file.URI] = struct{}{}
		state.found = append(state.found, file)
	}

	s.clearFolderFailure(folder.ID)
	state.result.FoldersScanned++
	state.result.FilesSeen += files
	s.logger.Debug("folder enumerated", "folder", folder.URI, "files", files)
	return nil
}

// folderUnavailable handles a folder whose root could not be opened. On
// startup the folder is treated as revoked: its songs are deleted and the
// registration is dropped. Other modes skip it for the rest of the session.
func (s *Service) folderUnavailable(ctx context.Context, state *runState, folder library.Folder, cause error) error {
	state.result.FoldersFailed++
	state.failed = append(state.failed, folder)
	state.result.Errors = append(state.result.Errors, ItemError{URI: folder.URI, Stage: "folder", Err: cause.Error()})
	s.markFolderFailed(folder.ID)

	if state.mode != ModeStartup {
		s.logger.Warn("folder unavailable, skipping", "folder", folder.URI, "error", cause)
		return nil
	}

	s.logger.Warn("folder revoked, removing its songs", "folder", folder.URI, "error", cause)

	orphanURIs := lo.Filter(lo.Keys(state.existing), func(uri string, _ int) bool {
		return storage.WithinFolder(uri, folder.URI)
	})
	ids := lo.Map(orphanURIs, func(uri string, _ int) string {
		return state.existing[uri]
	})

	removed, err := s.catalog.DeleteSongs(ctx, ids)
	if err != nil {
		s.logger.Warn("could not remove songs of revoked folder", "folder", folder.URI, "error", err)
		state.result.Errors = append(state.result.Errors, ItemError{URI: folder.URI, Stage: "revoke", Err: err.Error()})
		return nil
	}
	for _, uri := range orphanURIs {
		delete(state.existing, uri)
	}
	state.result.Removed += removed

	if err := s.folders.Delete(ctx, folder.ID); err != nil && !errors.Is(err, library.ErrFolderNotFound) {
		s.logger.Warn("could not drop revoked folder", "folder", folder.URI, "error", err)
		state.result.Errors = append(state.result.Errors, ItemError{URI: folder.URI, Stage: "revoke", Err: err.Error()})
		return nil
	}

	state.result.RevokedFolders = append(state.result.RevokedFolders, folder.URI)
	return nil
}

func (s *Service) removeMissing(ctx context.Context, state *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	missing := make([]string, 0)
	for uri, id := range state.existing {
		if _, found := state.seen[uri]; found {
			continue
		}
		state.result.Missing++

		// Disabling a folder hides it from scans without dropping its songs.
		within := func(folder library.Folder) bool {
			return storage.WithinFolder(uri, folder.URI)
		}
		if lo.ContainsBy(state.failed, within) || lo.ContainsBy(state.disabled, within) {
			state.result.Protected++
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return nil
	}

	removed, err := s.catalog.DeleteSongs(ctx, missing)
	if err != nil {
		return fmt.Errorf("delete missing songs: %w", err)
	}
	state.result.Removed += removed
	s.logger.Info("removed songs missing from folders", "count", removed)
	return nil
}

func (s *Service) processNew(ctx context.Context, state *runState, pending []storage.FileHandle) error {
	total := len(pending)
	processed := 0

	s.setPhase(PhaseExtracting)
	s.report(state, PhaseExtracting, fmt.Sprintf("Importing %d new files", total), processed, total)

	for _, batch := range lo.Chunk(pending, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setPhase(PhaseExtracting)
		results := s.extractBatch(ctx, batch)

		s.setPhase(PhasePersisting)
		for index, metadata := range results {
			s.persist(ctx, state, batch[index], metadata)
		}

		processed += len(batch)
		s.report(state, PhaseExtracting, fmt.Sprintf("Imported %d of %d", processed, total), processed, total)
	}

	return nil
}

// extractBatch runs one extraction per handle concurrently. Batches are the
// unit of cancellation, so a started batch always completes.
func (s *Service) extractBatch(ctx context.Context, batch []storage.FileHandle) []tags.Metadata {
	results := make([]tags.Metadata, len(batch))

	var group errgroup.Group
	group.SetLimit(s.batchSize)
	for index, handle := range batch {
		group.Go(func() error {
			results[index] = s.extractor.Extract(context.WithoutCancel(ctx), handle, "")
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (s *Service) persist(ctx context.Context, state *runState, handle storage.FileHandle, metadata tags.Metadata) {
	if metadata.Outcome == tags.OutcomeTooLarge {
		state.result.Skipped++
		state.result.Errors = append(state.result.Errors, ItemError{URI: handle.URI, Stage: "extract", Err: metadata.Reason})
		s.logger.Warn("skipping oversized file", "uri", handle.URI, "reason", metadata.Reason)
		return
	}

	song, err := s.catalog.AddSong(context.WithoutCancel(ctx), catalog.NewSong{
		Title:       metadata.Title,
		Artist:      metadata.Artist,
		Album:       metadata.Album,
		DurationMS:  metadata.DurationMS,
		SourceURI:   handle.URI,
		ArtworkPath: metadata.ArtworkPath,
		Palette:     metadata.Palette,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrSongExists) {
			state.result.Skipped++
			return
		}
		state.result.Failed++
		state.result.Errors = append(state.result.Errors, ItemError{URI: handle.URI, Stage: "insert", Err: err.Error()})
		s.logger.Warn("could not insert song", "uri", handle.URI, "error", err)
		return
	}

	state.existing[song.SourceURI] = song.ID
	state.result.Added++
	if metadata.Outcome == tags.OutcomeDegraded {
		state.result.Degraded++
		state.result.Errors = append(state.result.Errors, ItemError{URI: handle.URI, Stage: "extract", Err: metadata.Reason})
		s.logger.Warn("inserted song with default metadata", "uri", handle.URI, "reason", metadata.Reason)
	}
}

func (s *Service) setPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *Service) folderFailed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, failed := s.failedFolders[id]
	return failed
}

func (s *Service) markFolderFailed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedFolders[id] = struct{}{}
}

func (s *Service) clearFolderFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failedFolders, id)
}

func (s *Service) report(state *runState, phase Phase, message string, processed int, total int) {
	percent := 100
	if total > 0 {
		percent = processed * 100 / total
	}

	progress := Progress{
		Mode:      state.mode,
		Phase:     phase,
		Message:   message,
		Processed: processed,
		Total:     total,
		Percent:   percent,
		At:        time.Now().UTC().Format(time.RFC3339),
	}

	if state.progress != nil {
		state.progress(progress)
	}

	s.mu.Lock()
	emitter := s.emit
	s.mu.Unlock()

	if emitter != nil {
		emitter(EventProgress, progress)
	}
}

func uriOf(err error, fallback string) string {
	var enumerateErr *storage.EnumerateError
	if errors.As(err, &enumerateErr) && enumerateErr.URI != "" {
		return enumerateErr.URI
	}
	return fallback
}
