package ratings

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"album-club-bot/internal/domain"
)

var (
	ErrNoCurrentAlbum   = errors.New("альбом недели не выбран")
	ErrRatingOutOfRange = errors.New("оценка вне диапазона 1-10")
	ErrCommentTooLong   = errors.New("комментарий слишком длинный")
)

const (
	// Оценка целочисленная: схема хранит INT, диапазон из формы 1-10.
	MinScore = 1
	MaxScore = 10

	defaultCommentMaxLen = 500
)

// Service реализует оценивание альбома недели.
type Service struct {
	ratings       domain.RatingRepo
	current       domain.CurrentAlbumStore
	catalog       domain.CatalogResolver
	commentMaxLen int
}

// NewService создаёт сервис оценок.
func NewService(ratings domain.RatingRepo, current domain.CurrentAlbumStore, catalog domain.CatalogResolver, commentMaxLen int) *Service {
	if commentMaxLen <= 0 {
		commentMaxLen = defaultCommentMaxLen
	}
	return &Service{ratings: ratings, current: current, catalog: catalog, commentMaxLen: commentMaxLen}
}

// CurrentAlbum возвращает альбом недели или ErrNoCurrentAlbum.
func (s *Service) CurrentAlbum() (*domain.CurrentAlbum, error) {
	album, err := s.current.Get()
	if err != nil {
		return nil, fmt.Errorf("чтение альбома недели: %w", err)
	}
	if album == nil {
		return nil, ErrNoCurrentAlbum
	}
	return album, nil
}

// ExistingRating возвращает альбом недели и оценку пользователя, если она есть.
func (s *Service) ExistingRating(ctx context.Context, userID string) (*domain.CurrentAlbum, *domain.Rating, error) {
	album, err := s.CurrentAlbum()
	if err != nil {
		return nil, nil, err
	}
	rating, err := s.ratings.GetUserRatingForAlbum(ctx, userID, album.AlbumID)
	if err != nil {
		return nil, nil, fmt.Errorf("получение оценки: %w", err)
	}
	return album, rating, nil
}

// Result описывает записанную оценку.
type Result struct {
	Album   domain.CurrentAlbum
	Rating  domain.Rating
	Created bool
}

// Rate записывает оценку альбома недели. Повторная оценка той же пары
// обновляет существующую строку, новая не появляется.
func (s *Service) Rate(ctx context.Context, userID string, score int, comment string) (Result, error) {
	album, err := s.CurrentAlbum()
	if err != nil {
		return Result{}, err
	}
	if score < MinScore || score > MaxScore {
		return Result{}, ErrRatingOutOfRange
	}
	if utf8.RuneCountInString(comment) > s.commentMaxLen {
		return Result{}, ErrCommentTooLong
	}
	rating, created, err := s.ratings.UpsertRating(ctx, userID, album.AlbumID, score, comment)
	if err != nil {
		return Result{}, fmt.Errorf("запись оценки: %w", err)
	}
	return Result{Album: *album, Rating: rating, Created: created}, nil
}

// Report собирает полный список оценок альбома недели с агрегатом.
type Report struct {
	Album   domain.CurrentAlbum
	Ratings []domain.Rating
	Summary domain.RatingSummary
}

// RatingsReport возвращает оценки альбома недели.
func (s *Service) RatingsReport(ctx context.Context) (Report, error) {
	album, err := s.CurrentAlbum()
	if err != nil {
		return Report{}, err
	}
	list, err := s.ratings.ListRatingsForAlbum(ctx, album.AlbumID)
	if err != nil {
		return Report{}, fmt.Errorf("получение оценок: %w", err)
	}
	summary, err := s.ratings.AlbumRatingSummary(ctx, album.AlbumID)
	if err != nil {
		return Report{}, fmt.Errorf("агрегация оценок: %w", err)
	}
	return Report{Album: *album, Ratings: list, Summary: summary}, nil
}

// Card описывает карточку альбома недели с данными каталога.
type Card struct {
	Album domain.CurrentAlbum
	Info  domain.AlbumInfo
}

// CurrentAlbumCard возвращает альбом недели, обогащённый каталогом.
func (s *Service) CurrentAlbumCard(ctx context.Context) (Card, error) {
	album, err := s.CurrentAlbum()
	if err != nil {
		return Card{}, err
	}
	info, err := s.catalog.Resolve(ctx, album.AlbumID)
	if err != nil {
		return Card{}, fmt.Errorf("резолв альбома: %w", err)
	}
	return Card{Album: *album, Info: info}, nil
}
