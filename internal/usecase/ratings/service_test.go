package ratings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"album-club-bot/internal/domain"
)

type memRatingRepo struct {
	nextID int64
	rows   []domain.Rating
}

func (m *memRatingRepo) UpsertRating(_ context.Context, userID, albumID string, score int, comment string) (domain.Rating, bool, error) {
	for i, row := range m.rows {
		if row.UserID == userID && row.AlbumID == albumID {
			m.rows[i].Score = score
			m.rows[i].Comment = comment
			m.rows[i].RatedAt = time.Now()
			return m.rows[i], false, nil
		}
	}
	m.nextID++
	rating := domain.Rating{ID: m.nextID, UserID: userID, AlbumID: albumID, Score: score, Comment: comment, RatedAt: time.Now()}
	m.rows = append(m.rows, rating)
	return rating, true, nil
}

func (m *memRatingRepo) GetUserRatingForAlbum(_ context.Context, userID, albumID string) (*domain.Rating, error) {
	for _, row := range m.rows {
		if row.UserID == userID && row.AlbumID == albumID {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memRatingRepo) ListRatingsForAlbum(_ context.Context, albumID string) ([]domain.Rating, error) {
	var out []domain.Rating
	for _, row := range m.rows {
		if row.AlbumID == albumID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRatingRepo) AlbumRatingSummary(_ context.Context, albumID string) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	total := 0
	for _, row := range m.rows {
		if row.AlbumID == albumID {
			summary.Count++
			total += row.Score
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

type stubAlbumStore struct {
	album *domain.CurrentAlbum
}

func (s *stubAlbumStore) Get() (*domain.CurrentAlbum, error) { return s.album, nil }
func (s *stubAlbumStore) Set(albumID, name, artist string) error {
	s.album = &domain.CurrentAlbum{AlbumID: albumID, Name: name, Artist: artist}
	return nil
}

type stubCatalog struct {
	album domain.AlbumInfo
	err   error
}

func (s *stubCatalog) Resolve(context.Context, string) (domain.AlbumInfo, error) {
	return s.album, s.err
}

func newTestService(album *domain.CurrentAlbum) (*Service, *memRatingRepo) {
	repo := &memRatingRepo{}
	svc := NewService(repo, &stubAlbumStore{album: album}, &stubCatalog{}, 0)
	return svc, repo
}

func currentX123() *domain.CurrentAlbum {
	return &domain.CurrentAlbum{AlbumID: "X123", Name: "Global Warming", Artist: "Pitbull", DateSelected: "2026-08-31"}
}

func TestRateWithoutCurrentAlbum(t *testing.T) {
	svc, repo := newTestService(nil)
	_, err := svc.Rate(context.Background(), "userB", 7, "nice")
	if !errors.Is(err, ErrNoCurrentAlbum) {
		t.Fatalf("ожидали ErrNoCurrentAlbum, получили %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("строки появиться не должны, получили %d", len(repo.rows))
	}
}

func TestRateThenReRate(t *testing.T) {
	svc, repo := newTestService(currentX123())

	result, err := svc.Rate(context.Background(), "userB", 7, "nice")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !result.Created {
		t.Fatal("первая оценка должна быть новой")
	}

	rating, err := repo.GetUserRatingForAlbum(context.Background(), "userB", "X123")
	if err != nil || rating == nil {
		t.Fatalf("ожидали сохранённую оценку, получили %v, %v", rating, err)
	}
	if rating.Score != 7 || rating.Comment != "nice" {
		t.Fatalf("неожиданная оценка: %+v", rating)
	}

	result, err = svc.Rate(context.Background(), "userB", 9, "actually great")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Created {
		t.Fatal("повторная оценка должна обновлять существующую")
	}

	rating, _ = repo.GetUserRatingForAlbum(context.Background(), "userB", "X123")
	if rating.Score != 9 || rating.Comment != "actually great" {
		t.Fatalf("оценка не обновилась: %+v", rating)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("для пары должна быть ровно одна строка, получили %d", len(repo.rows))
	}
}

func TestRateOutOfRange(t *testing.T) {
	svc, repo := newTestService(currentX123())
	for _, score := range []int{0, 11, -3} {
		if _, err := svc.Rate(context.Background(), "userB", score, ""); !errors.Is(err, ErrRatingOutOfRange) {
			t.Fatalf("ожидали ErrRatingOutOfRange для %d, получили %v", score, err)
		}
	}
	if len(repo.rows) != 0 {
		t.Fatalf("отклонённые оценки не должны сохраняться, строк: %d", len(repo.rows))
	}
}

func TestRateCommentTooLong(t *testing.T) {
	svc, repo := newTestService(currentX123())
	comment := strings.Repeat("ж", 501)
	if _, err := svc.Rate(context.Background(), "userB", 8, comment); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("ожидали ErrCommentTooLong, получили %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("отклонённый комментарий не должен сохраняться, строк: %d", len(repo.rows))
	}
}

func TestExistingRating(t *testing.T) {
	svc, _ := newTestService(currentX123())

	album, rating, err := svc.ExistingRating(context.Background(), "userB")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if album.AlbumID != "X123" {
		t.Fatalf("неожиданный альбом: %+v", album)
	}
	if rating != nil {
		t.Fatalf("оценки ещё не было, получили %+v", rating)
	}

	if _, err := svc.Rate(context.Background(), "userB", 6, ""); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_, rating, err = svc.ExistingRating(context.Background(), "userB")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rating == nil || rating.Score != 6 {
		t.Fatalf("ожидали оценку 6, получили %+v", rating)
	}
}

func TestRatingsReport(t *testing.T) {
	svc, _ := newTestService(currentX123())
	if _, err := svc.Rate(context.Background(), "userA", 8, "хорошо"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Rate(context.Background(), "userB", 6, ""); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	report, err := svc.RatingsReport(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(report.Ratings) != 2 {
		t.Fatalf("ожидали две оценки, получили %d", len(report.Ratings))
	}
	if report.Summary.Count != 2 || report.Summary.Average != 7 {
		t.Fatalf("неожиданный агрегат: %+v", report.Summary)
	}
}

func TestCurrentAlbumCard(t *testing.T) {
	repo := &memRatingRepo{}
	catalog := &stubCatalog{album: domain.AlbumInfo{
		ID: "X123", Name: "Global Warming", Artists: []string{"Pitbull"},
		AlbumType: domain.AlbumTypeFull, TotalTracks: 18,
	}}
	svc := NewService(repo, &stubAlbumStore{album: currentX123()}, catalog, 0)

	card, err := svc.CurrentAlbumCard(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if card.Info.TotalTracks != 18 || card.Album.AlbumID != "X123" {
		t.Fatalf("неожиданная карточка: %+v", card)
	}
}
