package slas

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/helpdesk-ans/cmd/api/app"
	metrics "github.com/mark3748/helpdesk-ans/cmd/api/metrics"
	"github.com/mark3748/helpdesk-ans/internal/holidays"
	slapkg "github.com/mark3748/helpdesk-ans/internal/sla"
)

// Tiers returns the tier table.
func Tiers(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, slapkg.Policies())
	}
}

type assessReq struct {
	Category    string `json:"category" binding:"required"`
	Subcategory string `json:"subcategory"`
	Article     string `json:"article"`
	OpenedAt    string `json:"opened_at"`
}

type assessResp struct {
	slapkg.Assessment
	OpenedAt   time.Time `json:"opened_at"`
	DueDisplay string    `json:"due_display,omitempty"`
}

// Assess previews the tier and due date a ticket would get, without storing it.
func Assess(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in assessReq
		if err := c.ShouldBindJSON(&in); err != nil {
			apppkg.AbortBind(c, err)
			return
		}
		opened := time.Now()
		if in.OpenedAt != "" {
			var err error
			if opened, err = slapkg.ParseInstant(in.OpenedAt); err != nil {
				apppkg.AbortError(c, http.StatusBadRequest, "invalid_opened_at", err.Error(), map[string]string{"opened_at": "rfc3339"})
				return
			}
		}
		subject := slapkg.Subject{Category: in.Category, Subcategory: in.Subcategory, Article: in.Article}
		as, err := slapkg.Assess(a.Calendar, a.Classifier, subject, opened, a.HolidayLookup(c.Request.Context()))
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "sla_error", err.Error(), nil)
			return
		}
		metrics.ClassificationsTotal.WithLabelValues(string(as.Tier)).Inc()
		out := assessResp{Assessment: as, OpenedAt: opened.In(a.Calendar.Location)}
		if as.DueAt != nil {
			out.DueDisplay = as.DueAt.Format(slapkg.DisplayLayout)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Holiday is one non-working date.
type Holiday struct {
	Date slapkg.Date `json:"date"`
	Name string      `json:"name,omitempty"`
}

// Holidays lists the non-working dates of a year in calendar order.
func Holidays(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, ok := yearParam(c)
		if !ok {
			return
		}
		set, err := a.Holidays.Resolve(c.Request.Context(), year)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "holidays_error", err.Error(), nil)
			return
		}
		names := holidays.Colombia().Named(year)
		out := []Holiday{}
		for _, d := range set.Sorted() {
			out = append(out, Holiday{Date: d, Name: names[d]})
		}
		c.JSON(http.StatusOK, out)
	}
}

func yearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 || year > 2200 {
		apppkg.AbortError(c, http.StatusBadRequest, "invalid_year", "year must be between 1900 and 2200", nil)
		return 0, false
	}
	return year, true
}

type invalidator interface {
	Invalidate(ctx context.Context, years ...int) error
}

// InvalidateHolidays drops the cached holidays of a year so the next lookup
// recomputes them.
func InvalidateHolidays(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, ok := yearParam(c)
		if !ok {
			return
		}
		if inv, ok := a.Holidays.(invalidator); ok {
			if err := inv.Invalidate(c.Request.Context(), year); err != nil {
				apppkg.AbortError(c, http.StatusInternalServerError, "cache_error", err.Error(), nil)
				return
			}
		}
		c.Status(http.StatusNoContent)
	}
}
