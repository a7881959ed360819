package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

type FolderRepository interface {
	GetByID(ctx context.Context, id string) (*models.ContentFolder, error)
	GetByPath(ctx context.Context, path string) (*models.ContentFolder, error)
	ListActive(ctx context.Context) ([]*models.ContentFolder, error)
	List(ctx context.Context) ([]*models.ContentFolder, error)
	Create(ctx context.Context, f *models.ContentFolder) (string, error)
	UpdateScan(ctx context.Context, id, category string, totalMedia int) error
	IncrementUsed(ctx context.Context, id string) error
}

type folderRepository struct {
	db *sql.DB
}

func NewFolderRepository(db *sql.DB) FolderRepository {
	return &folderRepository{db: db}
}

const folderColumns = `id, name, path, total_media, used_media, category, is_active, created_at, updated_at`

func scanFolder(row interface{ Scan(...any) error }) (*models.ContentFolder, error) {
	var f models.ContentFolder
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.TotalMedia, &f.UsedMedia,
		&f.Category, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *folderRepository) GetByID(ctx context.Context, id string) (*models.ContentFolder, error) {
	query := `SELECT ` + folderColumns + ` FROM content_folders WHERE id = $1`
	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return f, nil
}

func (r *folderRepository) GetByPath(ctx context.Context, path string) (*models.ContentFolder, error) {
	query := `SELECT ` + folderColumns + ` FROM content_folders WHERE path = $1`
	f, err := scanFolder(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return f, nil
}

func (r *folderRepository) ListActive(ctx context.Context) ([]*models.ContentFolder, error) {
	query := `SELECT ` + folderColumns + ` FROM content_folders WHERE is_active = true ORDER BY name`
	return r.queryFolders(ctx, query)
}

func (r *folderRepository) List(ctx context.Context) ([]*models.ContentFolder, error) {
	query := `SELECT ` + folderColumns + ` FROM content_folders ORDER BY name`
	return r.queryFolders(ctx, query)
}

func (r *folderRepository) queryFolders(ctx context.Context, query string, args ...any) ([]*models.ContentFolder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var folders []*models.ContentFolder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (r *folderRepository) Create(ctx context.Context, f *models.ContentFolder) (string, error) {
	query := `
		INSERT INTO content_folders (id, name, path, total_media, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query, f.ID, f.Name, f.Path, f.TotalMedia, f.Category, f.IsActive).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return id, nil
}

func (r *folderRepository) UpdateScan(ctx context.Context, id, category string, totalMedia int) error {
	query := `
		UPDATE content_folders
		SET total_media = $1, category = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, totalMedia, category, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *folderRepository) IncrementUsed(ctx context.Context, id string) error {
	query := `UPDATE content_folders SET used_media = used_media + 1, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
