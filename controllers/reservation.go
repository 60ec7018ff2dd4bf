package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablebook-backend/models"
	"tablebook-backend/repositories"
	"tablebook-backend/services"
	"tablebook-backend/utils"
)

type ReservationManager interface {
	Create(ctx context.Context, in services.ReservationInput) (*models.Reservation, error)
	Get(ctx context.Context, id uint) (*models.Reservation, error)
	List(ctx context.Context, f repositories.ReservationFilter) ([]models.Reservation, int64, error)
	Update(ctx context.Context, id uint, in services.ReservationUpdate) (*models.Reservation, error)
	UpdateStatus(ctx context.Context, id uint, status string, handlerID *uint) (*models.Reservation, error)
	Delete(ctx context.Context, id uint) error
	GetCalendar(ctx context.Context, month string) (map[string][]models.Reservation, error)
}

// UpdateStatusInput defines the expected JSON structure for a status change
type UpdateStatusInput struct {
	Status string `json:"status" binding:"required"`
}

type ReservationList struct {
	Data     []models.Reservation `json:"data"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

type ReservationController struct {
	reservations ReservationManager
	log          zerolog.Logger
}

func NewReservationController(reservations ReservationManager, log zerolog.Logger) *ReservationController {
	return &ReservationController{
		reservations: reservations,
		log:          log.With().Str("component", "reservation_controller").Logger(),
	}
}

// CreateReservation handles public booking requests
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var input services.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.BindingErrorBody(err))
		return
	}

	reservation, err := rc.reservations.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// GetReservations lists reservations ordered by date and time
func (rc *ReservationController) GetReservations(c *gin.Context) {
	filter := repositories.ReservationFilter{}

	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status, err := models.ParseReservationStatus(v)
		if err != nil {
			utils.RespondWithFieldError(c, http.StatusBadRequest, "status", "Invalid status filter")
			return
		}
		filter.Status = status
	}
	if v := strings.TrimSpace(c.Query("date")); v != "" {
		date, err := models.ParseDate(v, time.UTC)
		if err != nil {
			utils.RespondWithFieldError(c, http.StatusBadRequest, "date", "Invalid date filter, expected YYYY-MM-DD")
			return
		}
		filter.Date = &date
	}

	page, ok := queryInt(c, "page", 1)
	if !ok || page < 1 {
		utils.RespondWithFieldError(c, http.StatusBadRequest, "page", "page must be a positive integer")
		return
	}
	pageSize, ok := queryInt(c, "page_size", repositories.DefaultPageSize)
	if !ok || pageSize < 1 || pageSize > repositories.MaxPageSize {
		utils.RespondWithFieldError(c, http.StatusBadRequest, "page_size", "page_size must be between 1 and 100")
		return
	}
	filter.Page = page
	filter.PageSize = pageSize

	rows, total, err := rc.reservations.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	if rows == nil {
		rows = []models.Reservation{}
	}

	c.JSON(http.StatusOK, ReservationList{Data: rows, Total: total, Page: page, PageSize: pageSize})
}

// GetCalendar returns a month of reservations keyed by date
func (rc *ReservationController) GetCalendar(c *gin.Context) {
	calendar, err := rc.reservations.GetCalendar(c.Request.Context(), c.Query("month"))
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.JSON(http.StatusOK, calendar)
}

func (rc *ReservationController) GetReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	reservation, err := rc.reservations.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// UpdateReservation edits a reservation that is still pending or confirmed
func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	var input services.ReservationUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.BindingErrorBody(err))
		return
	}

	ctx := c.Request.Context()
	existing, err := rc.reservations.Get(ctx, id)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}
	if !existing.Status.CanBeModified() {
		utils.RespondWithFieldError(c, http.StatusBadRequest, "status", "Reservation can no longer be modified")
		return
	}

	reservation, err := rc.reservations.Update(ctx, id, input)
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// UpdateReservationStatus records the authenticated staff member on confirm
func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, utils.BindingErrorBody(err))
		return
	}

	reservation, err := rc.reservations.UpdateStatus(c.Request.Context(), id, input.Status, utils.HandlerID(c))
	if err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (rc *ReservationController) DeleteReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	if err := rc.reservations.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, rc.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func reservationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid reservation ID format")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
