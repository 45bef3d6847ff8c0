package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"album-club-bot/internal/infra/metrics"
	"album-club-bot/internal/usecase/ratings"
	"album-club-bot/internal/usecase/submissions"
)

// Время, в течение которого ждём оценку после приглашения.
const pendingRateTTL = 10 * time.Minute

type pendingRate struct {
	albumID     string
	requestedAt time.Time
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot          *tgbotapi.BotAPI
	log          zerolog.Logger
	submissionUC *submissions.Service
	ratingUC     *ratings.Service
	mu           sync.Mutex
	pendingRates map[int64]pendingRate
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, submissionUC *submissions.Service, ratingUC *ratings.Service) *Handler {
	return &Handler{
		bot:          bot,
		log:          log,
		submissionUC: submissionUC,
		ratingUC:     ratingUC,
		pendingRates: make(map[int64]pendingRate),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		if h.tryHandleRateInput(ctx, msg.Chat.ID, msg.From.ID, text) {
			return
		}
		return
	}
	log := h.log.With().Str("cid", uuid.NewString()).Int64("user", msg.From.ID).Logger()
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage(), nil)
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(), nil)
	case strings.HasPrefix(text, "/submit"):
		input := strings.TrimSpace(strings.TrimPrefix(text, "/submit"))
		h.handleSubmit(ctx, log, msg.Chat.ID, msg.From.ID, input)
	case strings.HasPrefix(text, "/remove"):
		input := strings.TrimSpace(strings.TrimPrefix(text, "/remove"))
		if input == "" {
			h.handleRemoveSelect(ctx, log, msg.Chat.ID, msg.From.ID)
			return
		}
		h.handleRemove(ctx, log, msg.Chat.ID, msg.From.ID, input)
	case strings.HasPrefix(text, "/ratings"):
		h.handleRatingsReport(ctx, log, msg.Chat.ID)
	case strings.HasPrefix(text, "/rate"):
		h.handleRate(ctx, log, msg.Chat.ID, msg.From.ID)
	case strings.HasPrefix(text, "/current"):
		h.handleCurrent(ctx, log, msg.Chat.ID)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleSubmit(ctx context.Context, log zerolog.Logger, chatID, tgUserID int64, input string) {
	if input == "" {
		h.reply(chatID, "Отправьте /submit со ссылкой на альбом", nil)
		return
	}
	userID := strconv.FormatInt(tgUserID, 10)
	album, err := h.submissionUC.Submit(ctx, userID, input)
	if err != nil {
		switch {
		case errors.Is(err, submissions.ErrAlreadySubmitted):
			metrics.IncCommand("submit", "duplicate")
			h.reply(chatID, "Вы уже предлагали этот альбом.", nil)
		case errors.Is(err, submissions.ErrNotFullAlbum):
			metrics.IncCommand("submit", "rejected")
			h.reply(chatID, "Это не полноформатный альбом. Синглы и сборники не принимаются.", nil)
		default:
			metrics.IncCommand("submit", "error")
			log.Error().Err(err).Str("input", input).Msg("не удалось проверить альбом")
			h.reply(chatID, "Не удалось проверить альбом. Проверьте ссылку или попробуйте позже.", nil)
		}
		return
	}
	metrics.IncCommand("submit", "ok")
	metrics.SubmissionsTotal.Inc()
	h.reply(chatID, fmt.Sprintf("Альбом «%s» (%s) добавлен в ваши заявки!", album.Name, album.ArtistLine()), nil)
}

func (h *Handler) handleRemove(ctx context.Context, log zerolog.Logger, chatID, tgUserID int64, input string) {
	userID := strconv.FormatInt(tgUserID, 10)
	album, err := h.submissionUC.Remove(ctx, userID, input)
	if err != nil {
		switch {
		case errors.Is(err, submissions.ErrNotSubmitted):
			metrics.IncCommand("remove", "not_found")
			h.reply(chatID, "Этого альбома нет в ваших заявках.", nil)
		case errors.Is(err, submissions.ErrNotFullAlbum):
			metrics.IncCommand("remove", "rejected")
			h.reply(chatID, "Это не полноформатный альбом.", nil)
		default:
			metrics.IncCommand("remove", "error")
			log.Error().Err(err).Str("input", input).Msg("не удалось удалить заявку")
			h.reply(chatID, "Не удалось проверить альбом. Проверьте ссылку или попробуйте позже.", nil)
		}
		return
	}
	metrics.IncCommand("remove", "ok")
	h.reply(chatID, fmt.Sprintf("Альбом «%s» (%s) удалён из ваших заявок.", album.Name, album.ArtistLine()), nil)
}

func (h *Handler) handleRemoveSelect(ctx context.Context, log zerolog.Logger, chatID, tgUserID int64) {
	userID := strconv.FormatInt(tgUserID, 10)
	options, err := h.submissionUC.RemoveOptions(ctx, userID)
	if err != nil {
		if errors.Is(err, submissions.ErrNoSubmissions) {
			metrics.IncCommand("remove", "empty")
			h.reply(chatID, "У вас нет заявленных альбомов.", nil)
			return
		}
		metrics.IncCommand("remove", "error")
		log.Error().Err(err).Msg("не удалось получить заявки пользователя")
		h.reply(chatID, "Не удалось получить список заявок. Попробуйте позже.", nil)
		return
	}
	if len(options) == 0 {
		metrics.IncCommand("remove", "error")
		h.reply(chatID, "Каталог сейчас недоступен. Попробуйте позже.", nil)
		return
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, "rm:"+opt.AlbumID),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(chatID, "Выберите альбом, который нужно убрать из заявок:", &markup)
}

func (h *Handler) handleRate(ctx context.Context, log zerolog.Logger, chatID, tgUserID int64) {
	userID := strconv.FormatInt(tgUserID, 10)
	album, existing, err := h.ratingUC.ExistingRating(ctx, userID)
	if err != nil {
		if errors.Is(err, ratings.ErrNoCurrentAlbum) {
			metrics.IncCommand("rate", "no_album")
			h.reply(chatID, "Альбом недели пока не выбран.", nil)
			return
		}
		metrics.IncCommand("rate", "error")
		log.Error().Err(err).Msg("не удалось получить оценку пользователя")
		h.reply(chatID, "Внутренняя ошибка. Попробуйте позже.", nil)
		return
	}
	if existing == nil {
		h.setPendingRate(tgUserID, album.AlbumID)
		h.reply(chatID, h.buildRatePrompt(album.Name, album.Artist), nil)
		return
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Переоценить", "rate_again"),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", "rate_cancel"),
		),
	)
	h.reply(chatID, fmt.Sprintf(
		"Вы уже оценили «%s» (%s) на %d/10. Хотите переоценить?",
		album.Name, album.Artist, existing.Score,
	), &markup)
}

// tryHandleRateInput разбирает сообщение вида "8 отличный альбом",
// если пользователь находится в режиме ввода оценки.
func (h *Handler) tryHandleRateInput(ctx context.Context, chatID, tgUserID int64, text string) bool {
	h.mu.Lock()
	pending, ok := h.pendingRates[tgUserID]
	if ok && time.Since(pending.requestedAt) > pendingRateTTL {
		delete(h.pendingRates, tgUserID)
		ok = false
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	if strings.TrimSpace(text) == "" {
		h.reply(chatID, "Отправьте оценку от 1 до 10, при желании добавив комментарий: 8 отличный альбом", nil)
		return true
	}

	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	score, err := strconv.Atoi(fields[0])
	if err != nil {
		h.reply(chatID, "Оценка должна быть целым числом от 1 до 10.", nil)
		return true
	}
	var comment string
	if len(fields) > 1 {
		comment = strings.TrimSpace(fields[1])
	}

	// Альбом могли сменить, пока пользователь набирал оценку.
	if album, err := h.ratingUC.CurrentAlbum(); err != nil || album.AlbumID != pending.albumID {
		h.clearPendingRate(tgUserID)
		h.reply(chatID, "Альбом недели сменился. Начните заново: /rate", nil)
		return true
	}

	userID := strconv.FormatInt(tgUserID, 10)
	result, err := h.ratingUC.Rate(ctx, userID, score, comment)
	if err != nil {
		switch {
		case errors.Is(err, ratings.ErrRatingOutOfRange):
			h.reply(chatID, "Оценка должна быть от 1 до 10.", nil)
		case errors.Is(err, ratings.ErrCommentTooLong):
			h.reply(chatID, "Комментарий слишком длинный, сократите его до 500 символов.", nil)
		case errors.Is(err, ratings.ErrNoCurrentAlbum):
			h.clearPendingRate(tgUserID)
			h.reply(chatID, "Альбом недели уже снят.", nil)
		default:
			metrics.IncCommand("rate", "error")
			h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось записать оценку")
			h.reply(chatID, "Не удалось сохранить оценку. Попробуйте позже.", nil)
		}
		return true
	}
	h.clearPendingRate(tgUserID)
	metrics.IncCommand("rate", "ok")
	metrics.IncRating(result.Created)
	if result.Created {
		h.reply(chatID, fmt.Sprintf(
			"Спасибо! Ваша оценка «%s» (%s) — %d/10.",
			result.Album.Name, result.Album.Artist, result.Rating.Score,
		), nil)
	} else {
		h.reply(chatID, fmt.Sprintf("Ваша оценка обновлена: %d/10.", result.Rating.Score), nil)
	}
	return true
}

func (h *Handler) handleCurrent(ctx context.Context, log zerolog.Logger, chatID int64) {
	card, err := h.ratingUC.CurrentAlbumCard(ctx)
	if err != nil {
		if errors.Is(err, ratings.ErrNoCurrentAlbum) {
			metrics.IncCommand("current", "no_album")
			h.reply(chatID, "Альбом недели пока не выбран.", nil)
			return
		}
		metrics.IncCommand("current", "error")
		log.Error().Err(err).Msg("не удалось получить карточку альбома")
		h.reply(chatID, "Не удалось получить данные альбома. Попробуйте позже.", nil)
		return
	}
	metrics.IncCommand("current", "ok")

	genres := strings.Join(card.Info.Genres, ", ")
	if genres == "" {
		genres = "нет данных"
	}
	lines := []string{
		fmt.Sprintf("💿 Альбом недели: «%s»", card.Info.Name),
		fmt.Sprintf("Исполнитель: %s", card.Info.ArtistLine()),
		fmt.Sprintf("Дата релиза: %s", card.Info.ReleaseDate),
		fmt.Sprintf("Жанры: %s", genres),
		fmt.Sprintf("Треков: %d", card.Info.TotalTracks),
		fmt.Sprintf("Выбран: %s", card.Album.DateSelected),
	}
	if card.Info.ExternalURL != "" {
		lines = append(lines, card.Info.ExternalURL)
	}
	text := strings.Join(lines, "\n")

	if card.Info.CoverURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(card.Info.CoverURL))
		photo.Caption = text
		start := time.Now()
		_, err := h.bot.Send(photo)
		metrics.ObserveNetworkRequest("telegram_bot", "send_photo", strconv.FormatInt(chatID, 10), start, err)
		if err == nil {
			return
		}
		log.Error().Err(err).Msg("не удалось отправить обложку, отправляем текстом")
	}
	h.reply(chatID, text, nil)
}

func (h *Handler) handleRatingsReport(ctx context.Context, log zerolog.Logger, chatID int64) {
	report, err := h.ratingUC.RatingsReport(ctx)
	if err != nil {
		if errors.Is(err, ratings.ErrNoCurrentAlbum) {
			metrics.IncCommand("ratings", "no_album")
			h.reply(chatID, "Альбом недели пока не выбран.", nil)
			return
		}
		metrics.IncCommand("ratings", "error")
		log.Error().Err(err).Msg("не удалось собрать отчёт по оценкам")
		h.reply(chatID, "Не удалось получить оценки. Попробуйте позже.", nil)
		return
	}
	metrics.IncCommand("ratings", "ok")
	if len(report.Ratings) == 0 {
		h.reply(chatID, fmt.Sprintf("Альбом «%s» (%s) пока никто не оценил.", report.Album.Name, report.Album.Artist), nil)
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Оценки альбома «%s» (%s):\n", report.Album.Name, report.Album.Artist))
	for i, r := range report.Ratings {
		line := fmt.Sprintf("%d. %d/10", i+1, r.Score)
		if r.Comment != "" {
			line += " — " + r.Comment
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(fmt.Sprintf("\nСредняя оценка: %.1f/10 (голосов: %d)", report.Summary.Average, report.Summary.Count))
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	log := h.log.With().Str("cid", uuid.NewString()).Int64("user", cb.From.ID).Logger()
	data := cb.Data
	switch {
	case data == "rate_again":
		album, err := h.ratingUC.CurrentAlbum()
		if err != nil {
			h.reply(cb.Message.Chat.ID, "Альбом недели уже снят.", nil)
			break
		}
		h.setPendingRate(cb.From.ID, album.AlbumID)
		h.reply(cb.Message.Chat.ID, h.buildRatePrompt(album.Name, album.Artist), nil)
	case data == "rate_cancel":
		h.clearPendingRate(cb.From.ID)
		metrics.IncCommand("rate", "cancelled")
		h.reply(cb.Message.Chat.ID, "Обновление оценки отменено.", nil)
	case strings.HasPrefix(data, "rm:"):
		albumID := strings.TrimPrefix(data, "rm:")
		userID := strconv.FormatInt(cb.From.ID, 10)
		if err := h.submissionUC.RemoveByID(ctx, userID, albumID); err != nil {
			if errors.Is(err, submissions.ErrNotSubmitted) {
				h.reply(cb.Message.Chat.ID, "Этой заявки уже нет.", nil)
				break
			}
			metrics.IncCommand("remove", "error")
			log.Error().Err(err).Str("album_id", albumID).Msg("не удалось удалить заявку")
			h.reply(cb.Message.Chat.ID, "Не удалось удалить альбом. Попробуйте ещё раз.", nil)
			break
		}
		metrics.IncCommand("remove", "ok")
		h.reply(cb.Message.Chat.ID, "Альбом убран из ваших заявок.", nil)
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) setPendingRate(tgUserID int64, albumID string) {
	h.mu.Lock()
	h.pendingRates[tgUserID] = pendingRate{albumID: albumID, requestedAt: time.Now()}
	h.mu.Unlock()
}

func (h *Handler) clearPendingRate(tgUserID int64) {
	h.mu.Lock()
	delete(h.pendingRates, tgUserID)
	h.mu.Unlock()
}

func (h *Handler) buildRatePrompt(name, artist string) string {
	return strings.Join([]string{
		fmt.Sprintf("Оцените «%s» (%s).", name, artist),
		"",
		"Отправьте одним сообщением оценку от 1 до 10 и, при желании, комментарий:",
		"8 отличный альбом",
	}, "\n")
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := splitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) buildStartMessage() string {
	lines := []string{
		"👋 Добро пожаловать в клуб прослушивания альбомов!",
		"",
		"Как это работает:",
		"1. 💿 Каждую неделю выбирается альбом — смотрите его командой /current.",
		"2. ⭐ Оцените альбом недели командой /rate: оценка от 1 до 10 и комментарий.",
		"3. ➕ Предложите свой альбом на следующие недели: /submit со ссылкой на Spotify.",
		"",
		"Полный список команд — /help.",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команды клуба:",
		"",
		"Альбом недели:",
		"• /current — карточка альбома недели.",
		"• /rate — оценить альбом недели (1-10, с комментарием).",
		"• /ratings — все оценки альбома недели.",
		"",
		"Заявки:",
		"• /submit <ссылка> — предложить альбом. Принимаются только полноформатные альбомы.",
		"• /remove — убрать альбом из своих заявок, выбрав из списка.",
		"• /remove <ссылка> — убрать конкретный альбом.",
		"",
		"Подойдёт ссылка open.spotify.com/album/…, URI spotify:album:… или голый идентификатор.",
	}
	return strings.Join(sections, "\n")
}
