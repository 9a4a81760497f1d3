package tickets

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	app "github.com/mark3748/helpdesk-ans/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-ans/cmd/api/auth"
	eventspkg "github.com/mark3748/helpdesk-ans/cmd/api/events"
	metrics "github.com/mark3748/helpdesk-ans/cmd/api/metrics"
	"github.com/mark3748/helpdesk-ans/internal/notify"
	"github.com/mark3748/helpdesk-ans/internal/sla"
)

var htmlPolicy = bluemonday.UGCPolicy()

type Ticket struct {
	ID            string     `json:"id"`
	Number        string     `json:"number,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	Requester     string     `json:"requester,omitempty"`
	Category      string     `json:"category"`
	Subcategory   string     `json:"subcategory,omitempty"`
	Article       string     `json:"article,omitempty"`
	Tier          sla.Tier   `json:"tier"`
	RequiredHours int        `json:"required_hours"`
	OpenedAt      time.Time  `json:"opened_at"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	DueDisplay    string     `json:"due_display,omitempty"`
	BreachedAt    *time.Time `json:"breached_at,omitempty"`
}

// localize moves the ticket's instants into loc and fills DueDisplay.
func (t *Ticket) localize(loc *time.Location) {
	t.OpenedAt = t.OpenedAt.In(loc)
	t.DueDisplay = ""
	if t.DueAt != nil {
		due := t.DueAt.In(loc)
		t.DueAt = &due
		t.DueDisplay = due.Format(sla.DisplayLayout)
	}
	if t.BreachedAt != nil {
		b := t.BreachedAt.In(loc)
		t.BreachedAt = &b
	}
}

// createTicketReq mirrors the JSON body for creating a ticket.
type createTicketReq struct {
	Title       string `json:"title" binding:"required,min=3"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"required"`
	Subcategory string `json:"subcategory"`
	Article     string `json:"article"`
	OpenedAt    string `json:"opened_at"`
}

const insertTicket = `with s as (select nextval('ticket_seq') n)
insert into tickets (number, title, description, requester, requester_id, category, subcategory, article, tier, required_hours, opened_at, due_at)
values ((select 'ANS-'||n from s), $1, $2, $3, nullif($4,''), $5, $6, $7, $8, $9, $10, $11)
returning id::text, number, status`

// Create classifies the ticket, computes its deadline and stores it.
func Create(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createTicketReq
		if err := c.ShouldBindJSON(&in); err != nil {
			app.AbortBind(c, err)
			return
		}
		ctx := c.Request.Context()
		opened := time.Now()
		if in.OpenedAt != "" {
			var err error
			if opened, err = sla.ParseInstant(in.OpenedAt); err != nil {
				app.AbortError(c, http.StatusBadRequest, "invalid_opened_at", err.Error(), map[string]string{"opened_at": "rfc3339"})
				return
			}
		}
		subject := sla.Subject{Category: in.Category, Subcategory: in.Subcategory, Article: in.Article}
		as, err := sla.Assess(a.Calendar, a.Classifier, subject, opened, a.HolidayLookup(ctx))
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "sla_error", err.Error(), nil)
			return
		}
		metrics.ClassificationsTotal.WithLabelValues(string(as.Tier)).Inc()

		u, _ := authpkg.CurrentUser(c)
		t := Ticket{
			Title:         strings.TrimSpace(in.Title),
			Description:   htmlPolicy.Sanitize(in.Description),
			Status:        "New",
			Requester:     u.Label(),
			Category:      in.Category,
			Subcategory:   in.Subcategory,
			Article:       in.Article,
			Tier:          as.Tier,
			RequiredHours: as.RequiredHours,
			OpenedAt:      opened,
			DueAt:         as.DueAt,
		}
		// Test mode: no DB attached, nothing is persisted
		if a.DB == nil {
			t.ID = uuid.NewString()
		} else {
			row := a.DB.QueryRow(ctx, insertTicket, t.Title, t.Description, t.Requester, u.ID,
				t.Category, t.Subcategory, t.Article, string(t.Tier), t.RequiredHours, t.OpenedAt, t.DueAt)
			if err := row.Scan(&t.ID, &t.Number, &t.Status); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
				return
			}
		}
		t.localize(a.Calendar.Location)

		eventspkg.Emit(ctx, a.DB, t.ID, eventspkg.TicketCreated, as)
		if a.Q != nil {
			n := notify.Notification{
				Event:         notify.EventTicketCreated,
				TicketID:      t.ID,
				Number:        t.Number,
				Title:         t.Title,
				Requester:     t.Requester,
				Tier:          string(t.Tier),
				RequiredHours: t.RequiredHours,
				OpenedAt:      &t.OpenedAt,
				DueAt:         t.DueAt,
			}
			if err := notify.Enqueue(ctx, a.Q, n); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("ticket_id", t.ID).Msg("enqueue workflow")
			}
		}
		metrics.TicketsCreatedTotal.Inc()
		if t.DueAt != nil {
			metrics.DeadlineHours.Observe(t.DueAt.Sub(t.OpenedAt).Hours())
		}
		log.Ctx(ctx).Info().Str("ticket_id", t.ID).Str("tier", string(t.Tier)).Msg("ticket created")
		c.JSON(http.StatusCreated, t)
	}
}

const selectTicket = `select t.id::text, t.number, t.title, coalesce(t.description,''), t.status, coalesce(t.requester,''),
t.category, coalesce(t.subcategory,''), coalesce(t.article,''), t.tier, t.required_hours, t.opened_at, t.due_at, t.breached_at
from tickets t`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	var tier string
	err := row.Scan(&t.ID, &t.Number, &t.Title, &t.Description, &t.Status, &t.Requester,
		&t.Category, &t.Subcategory, &t.Article, &tier, &t.RequiredHours, &t.OpenedAt, &t.DueAt, &t.BreachedAt)
	t.Tier = sla.Tier(tier)
	return t, err
}

// List returns recent tickets, optionally filtered by tier, status and breach state.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := []Ticket{}
		if a.DB == nil {
			c.JSON(http.StatusOK, out)
			return
		}
		where := []string{}
		args := []any{}
		if v := strings.ToUpper(strings.TrimSpace(c.Query("tier"))); v != "" {
			if !sla.Tier(v).Valid() {
				app.AbortError(c, http.StatusBadRequest, "invalid_tier", "unknown tier "+v, nil)
				return
			}
			args = append(args, v)
			where = append(where, fmt.Sprintf("t.tier = $%d", len(args)))
		}
		if v := strings.TrimSpace(c.Query("status")); v != "" {
			args = append(args, v)
			where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
		}
		if v := strings.TrimSpace(c.Query("breached")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				app.AbortError(c, http.StatusBadRequest, "invalid_breached", "breached must be a boolean", nil)
				return
			}
			if b {
				where = append(where, "t.breached_at is not null")
			} else {
				where = append(where, "t.breached_at is null")
			}
		}
		sql := selectTicket
		if len(where) > 0 {
			sql += " where " + strings.Join(where, " and ")
		}
		sql += " order by t.opened_at desc limit 100"
		rows, err := a.DB.Query(c.Request.Context(), sql, args...)
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTicket(rows)
			if err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
				return
			}
			t.localize(a.Calendar.Location)
			out = append(out, t)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Get returns a ticket by id
func Get(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			app.AbortError(c, http.StatusNotFound, "not_found", "ticket not found", nil)
			return
		}
		t, err := scanTicket(a.DB.QueryRow(c.Request.Context(), selectTicket+" where t.id=$1", c.Param("id")))
		if errors.Is(err, pgx.ErrNoRows) {
			app.AbortError(c, http.StatusNotFound, "not_found", "ticket not found", nil)
			return
		}
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		t.localize(a.Calendar.Location)
		c.JSON(http.StatusOK, t)
	}
}

// UserKey keys the intake limiter by authenticated user, falling back to the
// client address.
func UserKey(c *gin.Context) string {
	if u, ok := authpkg.CurrentUser(c); ok && u.ID != "" {
		return u.ID
	}
	return c.ClientIP()
}
