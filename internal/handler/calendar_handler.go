package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-docs-api/internal/service"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/response"
)

// CalendarHandler exposes the business-day calendar.
type CalendarHandler struct {
	calendar *service.CalendarService
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// Holidays godoc
// @Summary List non-working holidays for a year
// @Tags Calendar
// @Produce json
// @Param year path int true "Calendar year"
// @Success 200 {object} response.Envelope
// @Router /calendar/holidays/{year} [get]
func (h *CalendarHandler) Holidays(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be an integer"))
		return
	}
	holidays, err := h.calendar.Holidays(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// NextBusinessDay godoc
// @Summary Resolve the next business day after a date
// @Tags Calendar
// @Produce json
// @Param from query string false "Starting date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /calendar/next-business-day [get]
func (h *CalendarHandler) NextBusinessDay(c *gin.Context) {
	from := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	response.JSON(c, http.StatusOK, h.calendar.NextBusinessDay(c.Request.Context(), from), nil)
}
