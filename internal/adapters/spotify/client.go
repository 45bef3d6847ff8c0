package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"album-club-bot/internal/domain"
	"album-club-bot/internal/infra/metrics"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// ErrInvalidAlbumLink возвращается, если из ввода не извлекается идентификатор альбома.
var ErrInvalidAlbumLink = errors.New("некорректная ссылка или идентификатор альбома")

var albumIDRegex = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// Client выполняет запросы к каталогу Spotify по client credentials.
type Client struct {
	http         *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ domain.CatalogResolver = (*Client)(nil)

// NewClient создаёт клиента каталога.
func NewClient(clientID, clientSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// NewClientWithURLs создаёт клиента с переопределёнными адресами. Для тестов.
func NewClientWithURLs(clientID, clientSecret, baseURL, tokenURL string, timeout time.Duration) *Client {
	c := NewClient(clientID, clientSecret, timeout)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	if tokenURL != "" {
		c.tokenURL = tokenURL
	}
	return c
}

// ParseAlbumID извлекает идентификатор альбома из голого ID,
// URI вида spotify:album:… или ссылки open.spotify.com/album/….
func ParseAlbumID(input string) (string, error) {
	trim := strings.TrimSpace(input)
	if trim == "" {
		return "", ErrInvalidAlbumLink
	}
	if albumIDRegex.MatchString(trim) {
		return trim, nil
	}
	if rest, ok := strings.CutPrefix(trim, "spotify:album:"); ok {
		if albumIDRegex.MatchString(rest) {
			return rest, nil
		}
		return "", ErrInvalidAlbumLink
	}
	if strings.Contains(trim, "open.spotify.com") {
		parsed, err := url.Parse(trim)
		if err != nil {
			return "", ErrInvalidAlbumLink
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		for i, part := range parts {
			if part == "album" && i+1 < len(parts) && albumIDRegex.MatchString(parts[i+1]) {
				return parts[i+1], nil
			}
		}
	}
	return "", ErrInvalidAlbumLink
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Обновляем заранее, чтобы токен не истёк в полёте.
	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("spotify: формирование запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("spotify", "token", "accounts", start, err)
	if err != nil {
		return "", fmt.Errorf("spotify: запрос токена: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("spotify: токен не выдан, статус %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("spotify: разбор ответа токена: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("spotify: пустой токен в ответе")
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type albumResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	AlbumType   string   `json:"album_type"`
	ReleaseDate string   `json:"release_date"`
	Genres      []string `json:"genres"`
	TotalTracks int      `json:"total_tracks"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// Resolve разрешает ссылку или идентификатор альбома в метаданные каталога.
func (c *Client) Resolve(ctx context.Context, input string) (domain.AlbumInfo, error) {
	albumID, err := ParseAlbumID(input)
	if err != nil {
		return domain.AlbumInfo{}, err
	}

	token, err := c.token(ctx)
	if err != nil {
		return domain.AlbumInfo{}, err
	}

	endpoint := c.baseURL + "/albums/" + albumID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("spotify: формирование запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("spotify", "get_album", albumID, start, err)
	if err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("spotify: запрос альбома: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.AlbumInfo{}, domain.ErrAlbumNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AlbumInfo{}, fmt.Errorf("spotify: статус %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var album albumResponse
	if err := json.NewDecoder(resp.Body).Decode(&album); err != nil {
		return domain.AlbumInfo{}, fmt.Errorf("spotify: разбор ответа: %w", err)
	}

	info := domain.AlbumInfo{
		ID:          album.ID,
		Name:        album.Name,
		AlbumType:   album.AlbumType,
		ReleaseDate: album.ReleaseDate,
		Genres:      album.Genres,
		TotalTracks: album.TotalTracks,
		ExternalURL: album.ExternalURLs.Spotify,
	}
	for _, artist := range album.Artists {
		info.Artists = append(info.Artists, artist.Name)
	}
	if len(album.Images) > 0 {
		info.CoverURL = album.Images[0].URL
	}
	return info, nil
}
