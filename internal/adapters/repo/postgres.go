package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"album-club-bot/internal/domain"
	"album-club-bot/internal/infra/metrics"
)

// Postgres реализует репозитории заявок и оценок на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.SubmissionRepo = (*Postgres)(nil)
var _ domain.RatingRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы заявок и оценок.
// Уникальные индексы по паре (user_id, album_id) закрывают гонку
// параллельных одинаковых заявок на уровне хранилища.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    album_id TEXT NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, album_id)
)`,
		`CREATE TABLE IF NOT EXISTS ratings (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    album_id TEXT NOT NULL,
    rating INT NOT NULL,
    comment TEXT,
    rated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, album_id)
)`,
	}
	for _, stmt := range statements {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddSubmission сохраняет заявку. Повторная заявка на ту же пару
// (пользователь, альбом) отклоняется самим хранилищем.
func (p *Postgres) AddSubmission(ctx context.Context, userID, albumID string) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO submissions (user_id, album_id)
VALUES ($1, $2)
ON CONFLICT (user_id, album_id) DO NOTHING
RETURNING id
`, userID, albumID).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "submissions_insert", "submissions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrDuplicateSubmission
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveSubmission удаляет заявку и сообщает, была ли она.
func (p *Postgres) RemoveSubmission(ctx context.Context, userID, albumID string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM submissions WHERE user_id=$1 AND album_id=$2`, userID, albumID)
	metrics.ObserveNetworkRequest("postgres", "submissions_delete", "submissions", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SubmissionExists проверяет наличие заявки.
func (p *Postgres) SubmissionExists(ctx context.Context, userID, albumID string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM submissions WHERE user_id=$1 AND album_id=$2)
`, userID, albumID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "submissions_exists", "submissions", start, err)
	return exists, err
}

// ListUserSubmissions возвращает заявки пользователя в порядке добавления.
func (p *Postgres) ListUserSubmissions(ctx context.Context, userID string) ([]domain.Submission, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, album_id, submitted_at
FROM submissions WHERE user_id=$1
ORDER BY id
`, userID)
	metrics.ObserveNetworkRequest("postgres", "submissions_list", "submissions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var submissions []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.AlbumID, &s.SubmittedAt); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// UpsertRating записывает оценку одним условным запросом: вставка при
// отсутствии, иначе обновление оценки, комментария и rated_at.
// Возвращает итоговую строку и признак того, что оценка новая.
func (p *Postgres) UpsertRating(ctx context.Context, userID, albumID string, score int, comment string) (domain.Rating, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		rating     domain.Rating
		commentSQL sql.NullString
		created    bool
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO ratings (user_id, album_id, rating, comment)
VALUES ($1, $2, $3, NULLIF($4,''))
ON CONFLICT (user_id, album_id) DO UPDATE
    SET rating = EXCLUDED.rating,
        comment = EXCLUDED.comment,
        rated_at = now()
RETURNING id, user_id, album_id, rating, comment, rated_at, (xmax = 0) AS inserted
`, userID, albumID, score, comment).Scan(&rating.ID, &rating.UserID, &rating.AlbumID, &rating.Score, &commentSQL, &rating.RatedAt, &created)
	metrics.ObserveNetworkRequest("postgres", "ratings_upsert", "ratings", start, err)
	if err != nil {
		return domain.Rating{}, false, err
	}
	if commentSQL.Valid {
		rating.Comment = commentSQL.String
	}
	return rating, created, nil
}

// GetUserRatingForAlbum возвращает оценку пользователя, nil если её нет.
func (p *Postgres) GetUserRatingForAlbum(ctx context.Context, userID, albumID string) (*domain.Rating, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		rating     domain.Rating
		commentSQL sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, user_id, album_id, rating, comment, rated_at
FROM ratings WHERE user_id=$1 AND album_id=$2
`, userID, albumID).Scan(&rating.ID, &rating.UserID, &rating.AlbumID, &rating.Score, &commentSQL, &rating.RatedAt)
	metrics.ObserveNetworkRequest("postgres", "ratings_get", "ratings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if commentSQL.Valid {
		rating.Comment = commentSQL.String
	}
	return &rating, nil
}

// ListRatingsForAlbum возвращает все оценки альбома без агрегации.
func (p *Postgres) ListRatingsForAlbum(ctx context.Context, albumID string) ([]domain.Rating, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, album_id, rating, comment, rated_at
FROM ratings WHERE album_id=$1
ORDER BY id
`, albumID)
	metrics.ObserveNetworkRequest("postgres", "ratings_list", "ratings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ratings []domain.Rating
	for rows.Next() {
		var (
			r          domain.Rating
			commentSQL sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.AlbumID, &r.Score, &commentSQL, &r.RatedAt); err != nil {
			return nil, err
		}
		if commentSQL.Valid {
			r.Comment = commentSQL.String
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// AlbumRatingSummary считает количество и среднее оценок альбома.
func (p *Postgres) AlbumRatingSummary(ctx context.Context, albumID string) (domain.RatingSummary, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		summary domain.RatingSummary
		avg     sql.NullFloat64
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*), AVG(rating) FROM ratings WHERE album_id=$1
`, albumID).Scan(&summary.Count, &avg)
	metrics.ObserveNetworkRequest("postgres", "ratings_summary", "ratings", start, err)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if avg.Valid {
		summary.Average = avg.Float64
	}
	return summary, nil
}
