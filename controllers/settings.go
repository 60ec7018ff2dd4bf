package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablebook-backend/models"
	"tablebook-backend/services"
	"tablebook-backend/utils"
)

type NotificationSettings interface {
	GetRuntimeConfig(ctx context.Context) (models.BookingNotificationConfig, error)
	UpdateConfig(ctx context.Context, patch services.NotificationSettingsPatch) (models.BookingNotificationConfig, error)
}

type SMTPVerifier interface {
	ResolveForVerify(ctx context.Context, override *models.SMTPSettings) models.SMTPSettings
	VerifyConnection(ctx context.Context, s models.SMTPSettings) services.VerifyResult
}

// NotificationSettingsResponse never carries the SMTP password.
type NotificationSettingsResponse struct {
	models.BookingNotificationConfig
	SMTPPasswordSet bool `json:"smtp_password_set"`
}

type SettingsController struct {
	settings NotificationSettings
	verifier SMTPVerifier
	log      zerolog.Logger
}

func NewSettingsController(settings NotificationSettings, verifier SMTPVerifier, log zerolog.Logger) *SettingsController {
	return &SettingsController{
		settings: settings,
		verifier: verifier,
		log:      log.With().Str("component", "settings_controller").Logger(),
	}
}

func maskSettings(cfg models.BookingNotificationConfig) NotificationSettingsResponse {
	set := cfg.SMTP.Password != ""
	cfg.SMTP.Password = ""
	return NotificationSettingsResponse{BookingNotificationConfig: cfg, SMTPPasswordSet: set}
}

func (sc *SettingsController) GetBookingNotifications(c *gin.Context) {
	cfg, err := sc.settings.GetRuntimeConfig(c.Request.Context())
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}

	c.JSON(http.StatusOK, maskSettings(cfg))
}

// UpdateBookingNotifications applies a partial update
func (sc *SettingsController) UpdateBookingNotifications(c *gin.Context) {
	var input services.NotificationSettingsPatch
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.BindingErrorBody(err))
		return
	}

	cfg, err := sc.settings.UpdateConfig(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}

	c.JSON(http.StatusOK, maskSettings(cfg))
}

// VerifySMTP checks the stored SMTP settings, overlaid with any fields in
// the request body, without sending mail.
func (sc *SettingsController) VerifySMTP(c *gin.Context) {
	var override *models.SMTPSettings
	if c.Request.ContentLength != 0 {
		var input models.SMTPSettings
		if err := c.ShouldBindJSON(&input); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, utils.BindingErrorBody(err))
			return
		}
		override = &input
	}

	ctx := c.Request.Context()
	result := sc.verifier.VerifyConnection(ctx, sc.verifier.ResolveForVerify(ctx, override))
	if !result.OK {
		sc.log.Warn().Str("reason", result.Reason).Str("detail", result.Message).Msg("smtp verification failed")
	}

	c.JSON(http.StatusOK, result)
}
