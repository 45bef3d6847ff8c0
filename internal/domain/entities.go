package domain

import (
	"strings"
	"time"
)

// Submission описывает заявку пользователя на альбом.
type Submission struct {
	ID          int64
	UserID      string
	AlbumID     string
	SubmittedAt time.Time
}

// Rating описывает оценку альбома пользователем.
type Rating struct {
	ID      int64
	UserID  string
	AlbumID string
	Score   int
	Comment string
	RatedAt time.Time
}

// RatingSummary содержит агрегат оценок по одному альбому.
type RatingSummary struct {
	Count   int
	Average float64
}

// CurrentAlbum представляет альбом клуба, открытый для оценок.
// Хранится единственной записью в плоском JSON-файле.
type CurrentAlbum struct {
	AlbumID      string `json:"album_id"`
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	DateSelected string `json:"date_selected"`
}

// AlbumTypeFull — значение album_type каталога для полноформатного альбома.
const AlbumTypeFull = "album"

// AlbumInfo содержит метаданные альбома из внешнего каталога.
type AlbumInfo struct {
	ID          string
	Name        string
	Artists     []string
	AlbumType   string
	ReleaseDate string
	Genres      []string
	TotalTracks int
	CoverURL    string
	ExternalURL string
}

// IsFullAlbum проверяет категорию записи по словарю каталога.
// Словарь внешний и может меняться, поэтому проверка изолирована здесь.
func (a AlbumInfo) IsFullAlbum() bool {
	return a.AlbumType == AlbumTypeFull
}

// ArtistLine возвращает исполнителей одной строкой.
func (a AlbumInfo) ArtistLine() string {
	return strings.Join(a.Artists, ", ")
}
