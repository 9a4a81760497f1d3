package events

import (
	"context"

	"github.com/rs/zerolog/log"

	apppkg "github.com/mark3748/helpdesk-ans/cmd/api/app"
	"github.com/mark3748/helpdesk-ans/internal/notify"
)

// Ticket event types.
const (
	TicketCreated = notify.EventTicketCreated
	SLABreached   = notify.EventSLABreached
)

// Emit records a ticket event in the database. Best effort; failures are
// logged and otherwise ignored.
func Emit(ctx context.Context, db apppkg.DB, ticketID, typ string, data interface{}) {
	if db == nil {
		return
	}
	if err := notify.Record(ctx, db, ticketID, typ, data); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event", typ).Str("ticket_id", ticketID).Msg("emit event")
	}
}
