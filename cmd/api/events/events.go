package events

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/helpdesk-ans/cmd/api/app"
)

// Event is one entry of a ticket's timeline.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

const listQuery = `select id::text, event_type, payload, created_at from ticket_events
where ticket_id=$1 order by created_at asc`

// List returns the events recorded for a ticket, oldest first.
func List(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := []Event{}
		if a.DB == nil {
			c.JSON(http.StatusOK, out)
			return
		}
		rows, err := a.DB.Query(c.Request.Context(), listQuery, c.Param("id"))
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var ev Event
			var payload []byte
			if err := rows.Scan(&ev.ID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
				apppkg.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
				return
			}
			if len(payload) > 0 {
				ev.Data = payload
			}
			out = append(out, ev)
		}
		if err := rows.Err(); err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
