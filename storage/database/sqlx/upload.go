package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/media"
)

const uploadColumns = "url, storage_key, content_type, size, uploader_id, created_at"

type uploadRow struct {
	URL         string    `db:"url"`
	Key         string    `db:"storage_key"`
	ContentType string    `db:"content_type"`
	Size        int       `db:"size"`
	UploaderID  string    `db:"uploader_id"`
	CreatedAt   time.Time `db:"created_at"`
}

type uploadRepository struct {
	baseRepository
}

var _ media.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(exec core.DBExecutor) media.Repository {
	return &uploadRepository{baseRepository{exec: exec}}
}

func (repo uploadRepository) CreateUpload(ctx context.Context, up media.Upload, exec ...core.DBExecutor) (media.Upload, error) {
	row := uploadRow(up)
	row.CreatedAt = row.CreatedAt.UTC()
	query := "INSERT INTO uploads (" + uploadColumns + ") VALUES (:url, :storage_key, :content_type, :size, :uploader_id, :created_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return media.Upload{}, errors.Wrap(err, "inserting upload")
	}
	return media.Upload(row), nil
}

func (repo uploadRepository) GetUpload(ctx context.Context, url string, exec ...core.DBExecutor) (media.Upload, error) {
	db := repo.getExec(exec)
	var row uploadRow
	if err := sqlx.GetContext(ctx, db, &row, db.Rebind("SELECT "+uploadColumns+" FROM uploads WHERE url = ?"), url); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return media.Upload{}, media.ErrNotFound
		}
		return media.Upload{}, errors.Wrap(err, "selecting upload")
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return media.Upload(row), nil
}

func (repo uploadRepository) DeleteUpload(ctx context.Context, url string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	res, err := db.ExecContext(ctx, db.Rebind("DELETE FROM uploads WHERE url = ?"), url)
	if err != nil {
		return errors.Wrap(err, "deleting upload")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return media.ErrNotFound
	}
	return nil
}

func (repo uploadRepository) UploadURLsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]string, error) {
	db := repo.getExec(exec)
	var urls []string
	query := db.Rebind("SELECT url FROM uploads WHERE uploader_id = ? ORDER BY created_at")
	if err := sqlx.SelectContext(ctx, db, &urls, query, uploaderID); err != nil {
		return nil, errors.Wrap(err, "selecting uploads")
	}
	return urls, nil
}

func (repo uploadRepository) CountReferences(ctx context.Context, url string, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	var count int
	query := db.Rebind(`SELECT
	(SELECT COUNT(*) FROM posts WHERE image_url = ?) +
	(SELECT COUNT(*) FROM events WHERE image_url = ?) +
	(SELECT COUNT(*) FROM users WHERE photo_url = ?)`)
	err := sqlx.GetContext(ctx, db, &count, query, url, url, url)
	return count, errors.Wrap(err, "counting upload references")
}
