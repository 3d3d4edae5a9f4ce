package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadence/internal/storage"
)

var ErrFolderNotFound = errors.New("music folder not found")

// folderNamespace seeds folder ids so the same URI always maps to the same id.
var folderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cadence:music-folder"))

type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt"`
}

// Handle returns the storage handle used to enumerate the folder.
func (f Folder) Handle() storage.FolderHandle {
	return storage.FolderHandle{URI: f.URI, Name: f.Name}
}

type FolderRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewFolderRepository(database *sql.DB) *FolderRepository {
	return &FolderRepository{db: database, now: time.Now}
}

// FolderID derives the registry id for a folder URI.
func FolderID(uri string) string {
	return uuid.NewSHA1(folderNamespace, []byte(uri)).String()
}

// NormalizeFolderURI makes bare paths absolute and clean. Scoped-storage
// and file URIs are only trimmed.
func NormalizeFolderURI(uri string) (string, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return "", errors.New("folder uri is required")
	}

	if storage.Scheme(trimmed) != "" {
		return strings.TrimRight(trimmed, "/"), nil
	}

	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func (r *FolderRepository) List(ctx context.Context) ([]Folder, error) {
	return r.list(ctx, "SELECT id, name, uri, enabled, created_at FROM music_folders ORDER BY name COLLATE NOCASE, uri")
}

func (r *FolderRepository) ListEnabled(ctx context.Context) ([]Folder, error) {
	return r.list(ctx, "SELECT id, name, uri, enabled, created_at FROM music_folders WHERE enabled = 1 ORDER BY name COLLATE NOCASE, uri")
}

func (r *FolderRepository) list(ctx context.Context, query string) ([]Folder, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list music folders: %w", err)
	}
	defer rows.Close()

	folders := make([]Folder, 0)
	for rows.Next() {
		var folder Folder
		var enabledInt int
		if err := rows.Scan(&folder.ID, &folder.Name, &folder.URI, &enabledInt, &folder.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan music folder row: %w", err)
		}
		folder.Enabled = enabledInt == 1
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate music folder rows: %w", err)
	}

	return folders, nil
}

// Add registers a folder. Adding a URI that is already registered returns
// the existing row unchanged.
func (r *FolderRepository) Add(ctx context.Context, uri string, name string) (Folder, error) {
	normalized, err := NormalizeFolderURI(uri)
	if err != nil {
		return Folder{}, err
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = storage.DisplayName(normalized)
	}
	if displayName == "" {
		displayName = normalized
	}

	id := FolderID(normalized)
	if _, err := r.db.ExecContext(
		ctx,
		`INSERT INTO music_folders(id, name, uri, enabled, created_at) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(uri) DO NOTHING`,
		id,
		displayName,
		normalized,
		r.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	); err != nil {
		return Folder{}, fmt.Errorf("insert music folder: %w", err)
	}

	return r.GetByURI(ctx, normalized)
}

func (r *FolderRepository) GetByID(ctx context.Context, id string) (Folder, error) {
	return r.get(ctx, "SELECT id, name, uri, enabled, created_at FROM music_folders WHERE id = ?", id)
}

func (r *FolderRepository) GetByURI(ctx context.Context, uri string) (Folder, error) {
	return r.get(ctx, "SELECT id, name, uri, enabled, created_at FROM music_folders WHERE uri = ?", uri)
}

func (r *FolderRepository) get(ctx context.Context, query string, key string) (Folder, error) {
	var folder Folder
	var enabledInt int
	err := r.db.QueryRowContext(ctx, query, key).Scan(&folder.ID, &folder.Name, &folder.URI, &enabledInt, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Folder{}, ErrFolderNotFound
		}
		return Folder{}, fmt.Errorf("get music folder %s: %w", key, err)
	}

	folder.Enabled = enabledInt == 1
	return folder, nil
}

func (r *FolderRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}

	result, err := r.db.ExecContext(
		ctx,
		"UPDATE music_folders SET enabled = ? WHERE id = ?",
		enabledInt,
		id,
	)
	if err != nil {
		return fmt.Errorf("update music folder %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated music folder count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrFolderNotFound
	}

	return nil
}

// Delete removes the registration only. Songs imported from the folder stay
// in the catalog until the cleanup sweep finds them missing.
func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM music_folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete music folder %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted music folder count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrFolderNotFound
	}

	return nil
}
