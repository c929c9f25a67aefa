package auth

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/services/respond"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

// initDataTTL - сколько действительна подпись initData
const initDataTTL = 24 * time.Hour

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	users      ledger.Ledger
	log        *logrus.Entry
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config, users ledger.Ledger, log *logrus.Entry) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		users:      users,
		log:        log,
	}
}

// GetJWTService возвращает сервис токенов для middleware и WebSocket
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

// TelegramAuthHandler проверяет initData, находит или создаёт пользователя и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	// Проверяем initData; в разработке без токена бота подпись не проверяется
	if s.cfg.TelegramBotToken != "" || !s.cfg.IsDevelopment() {
		if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, initDataTTL); err != nil {
			s.log.WithError(err).Debug("Невалидные данные Telegram")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Telegram data"})
		}
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil || data.User.ID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to parse initData"})
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	user, err := s.users.UpsertTelegramUser(ctx, models.TelegramProfile{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
		PhotoURL:   data.User.PhotoURL,
	}, s.cfg.Exchange.StartingPoints)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate JWT"})
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "telegram_id": data.User.ID}).Info("Вход через Telegram")

	return c.JSON(fiber.Map{
		"token": jwtToken,
		"user":  user,
	})
}

// ProfileHandler возвращает профиль текущего пользователя с балансом баллов
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	user, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(user)
}
