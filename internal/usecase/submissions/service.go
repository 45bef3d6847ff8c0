package submissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"album-club-bot/internal/domain"
)

var (
	ErrAlreadySubmitted = errors.New("альбом уже в заявках пользователя")
	ErrNotSubmitted     = errors.New("альбом не найден в заявках пользователя")
	ErrNotFullAlbum     = errors.New("запись не является полноформатным альбомом")
	ErrNoSubmissions    = errors.New("у пользователя нет заявок")
)

// Service управляет заявками на альбомы.
type Service struct {
	repo    domain.SubmissionRepo
	catalog domain.CatalogResolver
	log     zerolog.Logger
}

// NewService создаёт сервис заявок.
func NewService(repo domain.SubmissionRepo, catalog domain.CatalogResolver, log zerolog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, log: log}
}

// Submit проверяет альбом через каталог и сохраняет заявку.
func (s *Service) Submit(ctx context.Context, userID, input string) (domain.AlbumInfo, error) {
	album, err := s.catalog.Resolve(ctx, input)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("резолв альбома: %w", err)
	}
	if !album.IsFullAlbum() {
		return domain.AlbumInfo{}, ErrNotFullAlbum
	}
	exists, err := s.repo.SubmissionExists(ctx, userID, album.ID)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("проверка заявки: %w", err)
	}
	if exists {
		return domain.AlbumInfo{}, ErrAlreadySubmitted
	}
	if _, err := s.repo.AddSubmission(ctx, userID, album.ID); err != nil {
		// Параллельная такая же заявка могла успеть первой.
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return domain.AlbumInfo{}, ErrAlreadySubmitted
		}
		return domain.AlbumInfo{}, fmt.Errorf("сохранение заявки: %w", err)
	}
	return album, nil
}

// Remove проверяет альбом через каталог и удаляет заявку.
func (s *Service) Remove(ctx context.Context, userID, input string) (domain.AlbumInfo, error) {
	album, err := s.catalog.Resolve(ctx, input)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("резолв альбома: %w", err)
	}
	if !album.IsFullAlbum() {
		return domain.AlbumInfo{}, ErrNotFullAlbum
	}
	removed, err := s.repo.RemoveSubmission(ctx, userID, album.ID)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("удаление заявки: %w", err)
	}
	if !removed {
		return domain.AlbumInfo{}, ErrNotSubmitted
	}
	return album, nil
}

// RemoveByID удаляет заявку по идентификатору, выбранному из списка.
func (s *Service) RemoveByID(ctx context.Context, userID, albumID string) error {
	removed, err := s.repo.RemoveSubmission(ctx, userID, albumID)
	if err != nil {
		return fmt.Errorf("удаление заявки: %w", err)
	}
	if !removed {
		return ErrNotSubmitted
	}
	return nil
}

// Option описывает один пункт выбора при удалении.
type Option struct {
	AlbumID string
	Label   string
}

// RemoveOptions возвращает заявки пользователя с подписями из каталога.
// Заявки, по которым каталог не ответил, из списка выпадают.
func (s *Service) RemoveOptions(ctx context.Context, userID string) ([]Option, error) {
	subs, err := s.repo.ListUserSubmissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение заявок: %w", err)
	}
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}
	options := make([]Option, 0, len(subs))
	for _, sub := range subs {
		album, err := s.catalog.Resolve(ctx, sub.AlbumID)
		if err != nil {
			s.log.Error().Err(err).Str("album_id", sub.AlbumID).Msg("не удалось получить данные альбома из каталога")
			continue
		}
		options = append(options, Option{
			AlbumID: sub.AlbumID,
			Label:   fmt.Sprintf("%s — %s", album.Name, album.ArtistLine()),
		})
	}
	return options, nil
}
