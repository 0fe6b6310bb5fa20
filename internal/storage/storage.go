// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"photo-gallery/internal/models"
)

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

const photoColumns = `id, uploader_id, filename, original_path, processed_path, thumb_path,
	width, height, file_size, mime_type, season, category, description, exif_data,
	status, processing_status, captured_at, created_at, updated_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	var p models.Photo
	var exifRaw []byte
	err := row.Scan(&p.ID, &p.UploaderID, &p.Filename, &p.OriginalPath, &p.ProcessedPath,
		&p.ThumbPath, &p.Width, &p.Height, &p.FileSize, &p.MimeType, &p.Season,
		&p.Category, &p.Description, &exifRaw, &p.Status, &p.ProcessingStatus,
		&p.CapturedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.EXIFData = map[string]string{}
	if len(exifRaw) > 0 {
		if err := json.Unmarshal(exifRaw, &p.EXIFData); err != nil {
			p.EXIFData = map[string]string{}
		}
	}
	return &p, nil
}

// GetPhoto loads a photo by identifier. A missing row is (nil, nil), not an
// error: callers use absence as a normal outcome (dedup check, deleted
// photo in the tagging task).
func (s *Storage) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	const op = "storage.GetPhoto"

	row := s.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`, id)
	p, err := scanPhoto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return p, nil
}

func (s *Storage) CreatePhoto(ctx context.Context, p *models.Photo) error {
	const op = "storage.CreatePhoto"

	exifRaw, err := json.Marshal(p.EXIFData)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO photos (id, uploader_id, filename, original_path, processed_path,
			thumb_path, width, height, file_size, mime_type, season, category,
			description, exif_data, status, processing_status, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.UploaderID, p.Filename, p.OriginalPath, p.ProcessedPath, p.ThumbPath,
		p.Width, p.Height, p.FileSize, p.MimeType, p.Season, p.Category,
		p.Description, exifRaw, p.Status, p.ProcessingStatus, p.CapturedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) UpdatePhoto(ctx context.Context, p *models.Photo) error {
	const op = "storage.UpdatePhoto"

	_, err := s.pool.Exec(ctx,
		`UPDATE photos SET season = $2, category = $3, description = $4, status = $5,
			processing_status = $6, processed_path = $7, thumb_path = $8, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Season, p.Category, p.Description, p.Status,
		p.ProcessingStatus, p.ProcessedPath, p.ThumbPath)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) UpdateProcessingStatus(ctx context.Context, id, status string) error {
	const op = "storage.UpdateProcessingStatus"

	_, err := s.pool.Exec(ctx,
		`UPDATE photos SET processing_status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) DeletePhoto(ctx context.Context, id string) error {
	const op = "storage.DeletePhoto"

	_, err := s.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// ListFilter narrows ListPhotos results. Zero values mean "no filter".
type ListFilter struct {
	Status   string
	Season   string
	Category string
	Search   string
	Limit    int
	Offset   int
}

// ListPhotos returns one page of photos plus the unpaginated total.
func (s *Storage) ListPhotos(ctx context.Context, f ListFilter) ([]models.Photo, int, error) {
	const op = "storage.ListPhotos"

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	apply := func(b sq.SelectBuilder) sq.SelectBuilder {
		if f.Status != "" {
			b = b.Where(sq.Eq{"status": f.Status})
		}
		if f.Season != "" {
			b = b.Where(sq.Eq{"season": f.Season})
		}
		if f.Category != "" {
			b = b.Where(sq.Eq{"category": f.Category})
		}
		if f.Search != "" {
			pattern := "%" + f.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"filename": pattern}, sq.ILike{"description": pattern}})
		}
		return b
	}

	countSQL, countArgs, err := apply(psql.Select("COUNT(*)").From("photos")).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %v", op, err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %v", op, err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := apply(psql.Select(photoColumns).From("photos")).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(f.Offset))
	listSQL, listArgs, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %v", op, err)
	}

	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %v", op, err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %v", op, err)
	}
	return photos, total, nil
}

// GetOrCreateTag resolves a case-normalized tag name to its identifier,
// creating the tag on first sight.
func (s *Storage) GetOrCreateTag(ctx context.Context, name string) (int64, error) {
	const op = "storage.GetOrCreateTag"

	name = strings.ToLower(strings.TrimSpace(name))
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tags (name, color) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		name, randomColor()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}
	return id, nil
}

// ReplacePhotoTags swaps all tag associations of a photo in one transaction.
func (s *Storage) ReplacePhotoTags(ctx context.Context, photoID string, tagIDs []int64) error {
	const op = "storage.ReplacePhotoTags"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM photo_tags WHERE photo_id = $1`, photoID); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO photo_tags (photo_id, tag_id) VALUES ($1, $2)`, photoID, tagID); err != nil {
			return fmt.Errorf("%s: %v", op, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetPhotoTags(ctx context.Context, photoID string) ([]models.Tag, error) {
	const op = "storage.GetPhotoTags"

	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.name, COALESCE(t.category, ''), COALESCE(t.color, '')
		FROM tags t JOIN photo_tags pt ON pt.tag_id = t.id
		WHERE pt.photo_id = $1 ORDER BY t.name`, photoID)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Color); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return tags, nil
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.Intn(0x1000000))
}
