package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"album-club-bot/internal/adapters/bot"
	"album-club-bot/internal/adapters/currentalbum"
	"album-club-bot/internal/adapters/repo"
	"album-club-bot/internal/adapters/spotify"
	"album-club-bot/internal/infra/config"
	"album-club-bot/internal/infra/db"
	infrahttp "album-club-bot/internal/infra/http"
	"album-club-bot/internal/infra/log"
	"album-club-bot/internal/infra/metrics"
	"album-club-bot/internal/usecase/ratings"
	"album-club-bot/internal/usecase/submissions"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("не удалось инициализировать схему БД")
	}

	albumStore := currentalbum.NewFileStore(cfg.CurrentAlbumFile, logger)
	catalog := spotify.NewClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, 10*time.Second)

	submissionService := submissions.NewService(repoAdapter, catalog, logger)
	ratingService := ratings.NewService(repoAdapter, albumStore, catalog, cfg.Limits.CommentMaxLen)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	h := bot.NewHandler(botAPI, logger, submissionService, ratingService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Альбом недели могут подменить снаружи, следим за файлом.
	go func() {
		if err := albumStore.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("наблюдение за файлом альбома остановлено")
		}
	}()

	srv := infrahttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
