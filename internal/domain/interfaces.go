package domain

import (
	"context"
	"errors"
)

// ErrDuplicateSubmission возвращается хранилищем при повторной заявке
// на ту же пару (пользователь, альбом).
var ErrDuplicateSubmission = errors.New("заявка на этот альбом уже существует")

// ErrAlbumNotFound возвращается каталогом, если альбом не найден.
var ErrAlbumNotFound = errors.New("альбом не найден в каталоге")

// SubmissionRepo управляет заявками на альбомы.
type SubmissionRepo interface {
	AddSubmission(ctx context.Context, userID, albumID string) (int64, error)
	RemoveSubmission(ctx context.Context, userID, albumID string) (bool, error)
	SubmissionExists(ctx context.Context, userID, albumID string) (bool, error)
	ListUserSubmissions(ctx context.Context, userID string) ([]Submission, error)
}

// RatingRepo управляет оценками альбомов.
type RatingRepo interface {
	UpsertRating(ctx context.Context, userID, albumID string, score int, comment string) (Rating, bool, error)
	GetUserRatingForAlbum(ctx context.Context, userID, albumID string) (*Rating, error)
	ListRatingsForAlbum(ctx context.Context, albumID string) ([]Rating, error)
	AlbumRatingSummary(ctx context.Context, albumID string) (RatingSummary, error)
}

// CatalogResolver разрешает идентификатор или ссылку альбома в метаданные каталога.
type CatalogResolver interface {
	Resolve(ctx context.Context, input string) (AlbumInfo, error)
}

// CurrentAlbumStore хранит единственную запись об альбоме недели.
// Get возвращает nil без ошибки, если альбом не выбран.
type CurrentAlbumStore interface {
	Get() (*CurrentAlbum, error)
	Set(albumID, name, artist string) error
}
