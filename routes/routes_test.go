package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook-backend/config"
	"tablebook-backend/models"
	"tablebook-backend/repositories"
	"tablebook-backend/services"
	"tablebook-backend/utils"
)

type emptyReservations struct{}

func (emptyReservations) Create(context.Context, services.ReservationInput) (*models.Reservation, error) {
	return &models.Reservation{ID: 1, Status: models.StatusPending}, nil
}
func (emptyReservations) Get(_ context.Context, id uint) (*models.Reservation, error) {
	return nil, &services.NotFoundError{Resource: "reservation", ID: id}
}
func (emptyReservations) List(context.Context, repositories.ReservationFilter) ([]models.Reservation, int64, error) {
	return nil, 0, nil
}
func (emptyReservations) Update(_ context.Context, id uint, _ services.ReservationUpdate) (*models.Reservation, error) {
	return nil, &services.NotFoundError{Resource: "reservation", ID: id}
}
func (emptyReservations) UpdateStatus(_ context.Context, id uint, _ string, _ *uint) (*models.Reservation, error) {
	return nil, &services.NotFoundError{Resource: "reservation", ID: id}
}
func (emptyReservations) Delete(_ context.Context, id uint) error {
	return &services.NotFoundError{Resource: "reservation", ID: id}
}
func (emptyReservations) GetCalendar(context.Context, string) (map[string][]models.Reservation, error) {
	return map[string][]models.Reservation{}, nil
}
func (emptyReservations) Overview(context.Context) (services.DashboardOverview, error) {
	return services.DashboardOverview{}, nil
}

type emptySettings struct{}

func (emptySettings) GetRuntimeConfig(context.Context) (models.BookingNotificationConfig, error) {
	return models.BookingNotificationConfig{}, nil
}
func (emptySettings) UpdateConfig(context.Context, services.NotificationSettingsPatch) (models.BookingNotificationConfig, error) {
	return models.BookingNotificationConfig{}, nil
}
func (emptySettings) ResolveForVerify(context.Context, *models.SMTPSettings) models.SMTPSettings {
	return models.SMTPSettings{}
}
func (emptySettings) VerifyConnection(context.Context, models.SMTPSettings) services.VerifyResult {
	return services.VerifyResult{Reason: services.ReasonNotConfigured}
}

const testSecret = "router-test-secret"

func newTestRouter() http.Handler {
	return SetupRouter(Dependencies{
		Config:        config.Config{AppEnv: "test", JWTSecret: testSecret, CORSAllowedOrigins: []string{"http://localhost:3000"}},
		Log:           config.NopLogger(),
		Reservations:  emptyReservations{},
		Overview:      emptyReservations{},
		Notifications: emptySettings{},
		Verifier:      emptySettings{},
	})
}

func serve(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouterPublicAndOperationalRoutes(t *testing.T) {
	h := newTestRouter()

	w := serve(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(config.RequestIDHeader))

	w = serve(h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"customer_name":"Ada","customer_email":"ada@example.com","customer_phone":"+393331234567","reservation_date":"2026-10-20","reservation_time":"19:30","party_size":2}`
	w = serve(h, http.MethodPost, "/api/public/reservations", "", body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouterStaffRoutesRequireToken(t *testing.T) {
	h := newTestRouter()

	for _, path := range []string{"/api/reservations", "/api/dashboard", "/api/settings/booking-notifications"} {
		assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, path, "", "").Code, path)
	}

	token, err := utils.GenerateToken(5, time.Hour, testSecret)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/reservations", token, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/reservations/calendar?month=2026-10", token, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/reservations/9", token, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/dashboard", token, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/settings/booking-notifications", token, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/settings/booking-notifications/verify", token, "").Code)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.False(t, corsConfig([]string{"*"}).AllowCredentials)

	cfg := corsConfig([]string{"https://tablebook.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.True(t, cfg.AllowCredentials)
}
