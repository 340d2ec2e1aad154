package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pixel-tales-export-api/internal/database"
	"github.com/pixel-tales-export-api/internal/models"
	"github.com/rs/zerolog"
)

const storyColumns = `id, title, author, category, genres, language, cover_image, created_at, last_modified`

// storyRepo is the concrete implementation of StoryRepository
type storyRepo struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStoryRepo creates a new story repository
func NewStoryRepo(db *database.DB) StoryRepository {
	return &storyRepo{
		db:  db,
		log: db.Logger().With().Str("repository", "story").Logger(),
	}
}

// rowExecer is the COPY statement surface used per row; *sql.Stmt satisfies it.
type rowExecer interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
}

// copyStoryRows buffers one COPY row per story and returns the stories that
// were accepted. Rejected rows are logged and left out.
func copyStoryRows(ctx context.Context, stmt rowExecer, stories []*models.Story, now time.Time, log zerolog.Logger) []*models.Story {
	inserted := make([]*models.Story, 0, len(stories))
	for _, s := range stories {
		createdAt := s.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := stmt.ExecContext(ctx,
			s.ID, s.Title, nullString(s.Author), nullString(s.Category), textArray(s.Genres),
			nullString(s.Language), nullString(s.CoverImage), createdAt, s.LastModified,
		)
		if err != nil {
			log.Warn().Err(err).Str("story_id", s.ID).Msg("Story row rejected by COPY, skipping")
			continue
		}
		inserted = append(inserted, s)
	}
	return inserted
}

// Create inserts one story and its pages
func (r *storyRepo) Create(ctx context.Context, story *models.Story) error {
	_, err := r.BatchInsert(ctx, []*models.Story{story})
	return err
}

// BatchInsert inserts stories and their pages using PostgreSQL COPY inside
// a single transaction. Pages keep their slice order as position.
func (r *storyRepo) BatchInsert(ctx context.Context, stories []*models.Story) (int, error) {
	if len(stories) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("stories",
		"id", "title", "author", "category", "genres", "language",
		"cover_image", "created_at", "last_modified",
	))
	if err != nil {
		return 0, err
	}

	inserted := copyStoryRows(ctx, stmt, stories, time.Now(), r.log)
	if dropped := len(stories) - len(inserted); dropped > 0 {
		r.log.Warn().Int("dropped", dropped).Int("batch_size", len(stories)).Msg("Stories skipped in batch insert")
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to copy stories: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	pages, err := tx.PrepareContext(ctx, pq.CopyIn("story_pages",
		"story_id", "position", "text", "canvas_data", "background_image",
	))
	if err != nil {
		return 0, err
	}
	defer pages.Close()

	for _, s := range inserted {
		for i, p := range s.Pages {
			if _, err := pages.ExecContext(ctx,
				s.ID, i, p.Text, nullString(p.CanvasData), nullString(p.BackgroundImage),
			); err != nil {
				return 0, fmt.Errorf("failed to copy page %d of story %s: %w", i, s.ID, err)
			}
		}
	}

	if _, err := pages.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to copy story pages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(inserted), nil
}

// GetByID retrieves a story with its pages
func (r *storyRepo) GetByID(ctx context.Context, id string) (*models.Story, error) {
	stories, err := r.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}
	return stories[0], nil
}

// GetByIDs retrieves the given stories with their pages in library order.
// Unknown IDs are skipped.
func (r *storyRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.Story, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = ANY($1) ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*models.Story
	byID := make(map[string]*models.Story, len(ids))
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}

	pageRows, err := r.db.QueryContext(ctx, `
		SELECT story_id, text, canvas_data, background_image
		FROM story_pages WHERE story_id = ANY($1)
		ORDER BY story_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer pageRows.Close()

	for pageRows.Next() {
		var storyID string
		var p models.Page
		var canvas, background sql.NullString
		if err := pageRows.Scan(&storyID, &p.Text, &canvas, &background); err != nil {
			return nil, err
		}
		p.CanvasData = canvas.String
		p.BackgroundImage = background.String
		if s, ok := byID[storyID]; ok {
			s.Pages = append(s.Pages, p)
		}
	}

	return stories, pageRows.Err()
}

// List returns story summaries in library order
func (r *storyRepo) List(ctx context.Context, limit, offset int) ([]models.StorySummary, error) {
	query := `
		SELECT s.id, s.title, s.author, s.category, s.language, s.cover_image IS NOT NULL,
			s.created_at, s.last_modified,
			(SELECT COUNT(*) FROM story_pages p WHERE p.story_id = s.id)
		FROM stories s
		ORDER BY s.created_at, s.id
		LIMIT $1 OFFSET $2
	`
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.StorySummary
	for rows.Next() {
		var sum models.StorySummary
		var author, category, language sql.NullString
		var lastModified sql.NullTime
		if err := rows.Scan(&sum.ID, &sum.Title, &author, &category, &language, &sum.HasCover,
			&sum.CreatedAt, &lastModified, &sum.PageCount); err != nil {
			return nil, err
		}
		sum.Author = author.String
		sum.Category = category.String
		sum.Language = language.String
		if lastModified.Valid {
			sum.LastModified = &lastModified.Time
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Exists checks if a story exists
func (r *storyRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM stories WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// GetAllIDs returns every story ID in library order
func (r *storyRepo) GetAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM stories ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the total number of stories
func (r *storyRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories`).Scan(&count)
	return count, err
}

func scanStory(rows *sql.Rows) (*models.Story, error) {
	var s models.Story
	var author, category, language, cover sql.NullString
	var lastModified sql.NullTime

	if err := rows.Scan(&s.ID, &s.Title, &author, &category, pq.Array(&s.Genres),
		&language, &cover, &s.CreatedAt, &lastModified); err != nil {
		return nil, err
	}

	s.Author = author.String
	s.Category = category.String
	s.Language = language.String
	s.CoverImage = cover.String
	if lastModified.Valid {
		s.LastModified = &lastModified.Time
	}
	return &s, nil
}
