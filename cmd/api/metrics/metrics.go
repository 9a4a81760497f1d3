package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	app "github.com/mark3748/helpdesk-ans/cmd/api/app"
)

// Counters are package variables so tests can swap in unregistered copies.
var (
	TicketsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickets_created_total",
		Help: "Tickets accepted by the intake endpoint.",
	})
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_classifications_total",
		Help: "Tickets classified per SLA tier, including previews.",
	}, []string{"tier"})
	DeadlineHours = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sla_deadline_wall_hours",
		Help:    "Wall-clock hours between opening and due date.",
		Buckets: []float64{2, 4, 8, 24, 72, 168, 336, 720},
	})
)

func init() {
	prometheus.MustRegister(TicketsCreatedTotal, ClassificationsTotal, DeadlineHours)
}

// SLAReport summarizes deadline attainment over tickets that carry a due date.
type SLAReport struct {
	Total         int     `json:"total"`
	Met           int     `json:"met"`
	Breached      int     `json:"breached"`
	SLAAttainment float64 `json:"sla_attainment"`
}

const slaQuery = `select count(*), count(*) filter (where breached_at is not null)
from tickets where due_at is not null`

// SLA reports how many deadline-bearing tickets were met or breached.
func SLA(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rep SLAReport
		if a.DB == nil {
			c.JSON(http.StatusOK, rep)
			return
		}
		if err := a.DB.QueryRow(c.Request.Context(), slaQuery).Scan(&rep.Total, &rep.Breached); err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		rep.Met = rep.Total - rep.Breached
		if rep.Total > 0 {
			rep.SLAAttainment = float64(rep.Met) / float64(rep.Total)
		}
		c.JSON(http.StatusOK, rep)
	}
}
