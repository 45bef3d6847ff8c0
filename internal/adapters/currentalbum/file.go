package currentalbum

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"album-club-bot/internal/domain"
)

// FileStore хранит альбом недели единственной записью в JSON-файле.
// Отсутствие файла, битый JSON и пустой album_id означают "альбом не выбран".
type FileStore struct {
	path string
	log  zerolog.Logger

	mu     sync.RWMutex
	cached *domain.CurrentAlbum
	primed bool
}

var _ domain.CurrentAlbumStore = (*FileStore)(nil)

// NewFileStore создаёт хранилище альбома недели.
func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Get возвращает текущий альбом или nil, если он не выбран.
func (s *FileStore) Get() (*domain.CurrentAlbum, error) {
	s.mu.RLock()
	if s.primed {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()
	return s.readFile()
}

// Set перезаписывает запись, проставляя сегодняшнюю дату выбора.
// Запись атомарная: временный файл плюс rename.
func (s *FileStore) Set(albumID, name, artist string) error {
	album := domain.CurrentAlbum{
		AlbumID:      albumID,
		Name:         name,
		Artist:       artist,
		DateSelected: time.Now().Format("2006-01-02"),
	}
	data, err := json.MarshalIndent(album, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.mu.Lock()
	if s.primed {
		copied := album
		s.cached = &copied
	}
	s.mu.Unlock()
	return nil
}

// Watch следит за файлом и перечитывает его при внешних изменениях:
// администратор может подложить запись мимо бота, рестарт не нужен.
// Блокируется до отмены контекста.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	if err := s.reload(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Error().Err(err).Str("file", s.path).Msg("не удалось перечитать альбом недели")
				continue
			}
			s.logCurrent()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(err).Str("file", s.path).Msg("ошибка наблюдения за файлом")
		}
	}
}

func (s *FileStore) reload() error {
	album, err := s.readFile()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = album
	s.primed = true
	s.mu.Unlock()
	return nil
}

func (s *FileStore) readFile() (*domain.CurrentAlbum, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var album domain.CurrentAlbum
	if err := json.Unmarshal(data, &album); err != nil {
		// Битая запись равносильна отсутствию альбома.
		s.log.Warn().Err(err).Str("file", s.path).Msg("запись альбома недели не читается")
		return nil, nil
	}
	if album.AlbumID == "" {
		return nil, nil
	}
	return &album, nil
}

func (s *FileStore) logCurrent() {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached == nil {
		s.log.Info().Msg("альбом недели снят")
		return
	}
	s.log.Info().Str("album_id", cached.AlbumID).Str("name", cached.Name).Msg("альбом недели обновлён")
}
