package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	Spotify struct {
		ClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
		ClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	CurrentAlbumFile string `envconfig:"CURRENT_ALBUM_FILE" default:"data/active_album.json"`

	Limits struct {
		CommentMaxLen int `envconfig:"COMMENT_MAX_LEN" default:"500"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env подхватывается, если есть.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
