package submissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"album-club-bot/internal/domain"
)

type memSubmissionRepo struct {
	nextID int64
	rows   []domain.Submission
	// Имитация гонки: проверка существования лжёт, вставка ловит конфликт.
	hideExisting bool
}

func (m *memSubmissionRepo) AddSubmission(_ context.Context, userID, albumID string) (int64, error) {
	for _, row := range m.rows {
		if row.UserID == userID && row.AlbumID == albumID {
			return 0, domain.ErrDuplicateSubmission
		}
	}
	m.nextID++
	m.rows = append(m.rows, domain.Submission{ID: m.nextID, UserID: userID, AlbumID: albumID, SubmittedAt: time.Now()})
	return m.nextID, nil
}

func (m *memSubmissionRepo) RemoveSubmission(_ context.Context, userID, albumID string) (bool, error) {
	kept := m.rows[:0]
	removed := false
	for _, row := range m.rows {
		if row.UserID == userID && row.AlbumID == albumID {
			removed = true
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return removed, nil
}

func (m *memSubmissionRepo) SubmissionExists(_ context.Context, userID, albumID string) (bool, error) {
	if m.hideExisting {
		return false, nil
	}
	for _, row := range m.rows {
		if row.UserID == userID && row.AlbumID == albumID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubmissionRepo) ListUserSubmissions(_ context.Context, userID string) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubCatalog struct {
	albums  map[string]domain.AlbumInfo
	failing map[string]bool
}

func (s *stubCatalog) Resolve(_ context.Context, input string) (domain.AlbumInfo, error) {
	if s.failing[input] {
		return domain.AlbumInfo{}, fmt.Errorf("каталог недоступен")
	}
	album, ok := s.albums[input]
	if !ok {
		return domain.AlbumInfo{}, domain.ErrAlbumNotFound
	}
	return album, nil
}

func fullAlbum(id, name, artist string) domain.AlbumInfo {
	return domain.AlbumInfo{ID: id, Name: name, Artists: []string{artist}, AlbumType: domain.AlbumTypeFull}
}

func TestSubmitThenDuplicate(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{albums: map[string]domain.AlbumInfo{
		"X123": fullAlbum("X123", "Global Warming", "Pitbull"),
	}}
	svc := NewService(repo, catalog, zerolog.Nop())

	album, err := svc.Submit(context.Background(), "userA", "X123")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if album.Name != "Global Warming" {
		t.Fatalf("неожиданный альбом: %q", album.Name)
	}

	subs, err := repo.ListUserSubmissions(context.Background(), "userA")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(subs) != 1 || subs[0].AlbumID != "X123" {
		t.Fatalf("ожидали ровно одну заявку X123, получили %+v", subs)
	}

	if _, err := svc.Submit(context.Background(), "userA", "X123"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("ожидали ErrAlreadySubmitted, получили %v", err)
	}
	subs, _ = repo.ListUserSubmissions(context.Background(), "userA")
	if len(subs) != 1 {
		t.Fatalf("повторная заявка не должна менять данные, строк: %d", len(subs))
	}
}

func TestSubmitDuplicateRace(t *testing.T) {
	repo := &memSubmissionRepo{hideExisting: true}
	catalog := &stubCatalog{albums: map[string]domain.AlbumInfo{
		"X123": fullAlbum("X123", "Global Warming", "Pitbull"),
	}}
	svc := NewService(repo, catalog, zerolog.Nop())

	if _, err := svc.Submit(context.Background(), "userA", "X123"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Проверка существования промахнулась, дубль ловит уникальный индекс.
	if _, err := svc.Submit(context.Background(), "userA", "X123"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("ожидали ErrAlreadySubmitted, получили %v", err)
	}
}

func TestSubmitRejectsNonAlbum(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{albums: map[string]domain.AlbumInfo{
		"S1": {ID: "S1", Name: "Single", Artists: []string{"X"}, AlbumType: "single"},
	}}
	svc := NewService(repo, catalog, zerolog.Nop())

	if _, err := svc.Submit(context.Background(), "userA", "S1"); !errors.Is(err, ErrNotFullAlbum) {
		t.Fatalf("ожидали ErrNotFullAlbum, получили %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("отклонённая команда не должна менять данные, строк: %d", len(repo.rows))
	}
}

func TestSubmitVerificationFailed(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{failing: map[string]bool{"bad": true}}
	svc := NewService(repo, catalog, zerolog.Nop())

	if _, err := svc.Submit(context.Background(), "userA", "bad"); err == nil {
		t.Fatal("ожидали ошибку резолва")
	}
	if len(repo.rows) != 0 {
		t.Fatalf("при ошибке каталога данные должны остаться нетронутыми, строк: %d", len(repo.rows))
	}
}

func TestRemoveNotSubmitted(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{albums: map[string]domain.AlbumInfo{
		"X123": fullAlbum("X123", "Global Warming", "Pitbull"),
	}}
	svc := NewService(repo, catalog, zerolog.Nop())

	if _, err := svc.Remove(context.Background(), "userA", "X123"); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("ожидали ErrNotSubmitted, получили %v", err)
	}
}

func TestRemoveBySelection(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{albums: map[string]domain.AlbumInfo{
		"A1": fullAlbum("A1", "One", "X"),
		"A2": fullAlbum("A2", "Two", "Y"),
	}}
	svc := NewService(repo, catalog, zerolog.Nop())

	for _, id := range []string{"A1", "A2"} {
		if _, err := svc.Submit(context.Background(), "userC", id); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	options, err := svc.RemoveOptions(context.Background(), "userC")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("ожидали два варианта, получили %d", len(options))
	}

	if err := svc.RemoveByID(context.Background(), "userC", "A2"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	subs, _ := repo.ListUserSubmissions(context.Background(), "userC")
	if len(subs) != 1 || subs[0].AlbumID != "A1" {
		t.Fatalf("ожидали ровно одну заявку A1, получили %+v", subs)
	}
}

func TestRemoveOptionsSkipsFailedLookups(t *testing.T) {
	repo := &memSubmissionRepo{}
	catalog := &stubCatalog{
		albums:  map[string]domain.AlbumInfo{"A1": fullAlbum("A1", "One", "X"), "A2": fullAlbum("A2", "Two", "Y")},
		failing: map[string]bool{},
	}
	svc := NewService(repo, catalog, zerolog.Nop())
	for _, id := range []string{"A1", "A2"} {
		if _, err := svc.Submit(context.Background(), "userC", id); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	catalog.failing["A2"] = true
	options, err := svc.RemoveOptions(context.Background(), "userC")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(options) != 1 || options[0].AlbumID != "A1" {
		t.Fatalf("ожидали один вариант A1, получили %+v", options)
	}
}

func TestRemoveOptionsNoSubmissions(t *testing.T) {
	svc := NewService(&memSubmissionRepo{}, &stubCatalog{}, zerolog.Nop())
	if _, err := svc.RemoveOptions(context.Background(), "userZ"); !errors.Is(err, ErrNoSubmissions) {
		t.Fatalf("ожидали ErrNoSubmissions, получили %v", err)
	}
}
