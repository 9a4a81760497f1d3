package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used to write timeline rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const insertEvent = `insert into ticket_events (ticket_id, event_type, payload) values ($1, $2, $3)`

// Record appends an event to the ticket's timeline.
func Record(ctx context.Context, db Execer, ticketID, typ string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := db.Exec(ctx, insertEvent, ticketID, typ, b); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
