package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Calendar is a stored work calendar together with its company-specific days off.
type Calendar struct {
	Work  WorkCalendar
	Extra HolidaySet
}

// LoadCalendar reads a calendar row and its extra holidays. Weekend days are stored
// as weekday numbers (Sunday=0); an empty list is a seven-day operation.
func LoadCalendar(ctx context.Context, db DB, id string) (*Calendar, error) {
	var tz string
	var start, end int
	var weekend []int32
	const q = "select tz, work_start_hour, work_end_hour, weekend_days from calendars where id=$1"
	if err := db.QueryRow(ctx, q, id).Scan(&tz, &start, &end, &weekend); err != nil {
		return nil, fmt.Errorf("load calendar %s: %w", id, err)
	}
	days := make([]time.Weekday, 0, len(weekend))
	for _, d := range weekend {
		days = append(days, time.Weekday(d))
	}
	work, err := NewWorkCalendar(tz, start, end, days...)
	if err != nil {
		return nil, err
	}
	cal := &Calendar{Work: work, Extra: HolidaySet{}}
	rows, err := db.Query(ctx, "select day from holidays where calendar_id=$1", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		// stored as date; read the civil fields, never convert zones
		cal.Extra[DateOf(d)] = struct{}{}
	}
	return cal, rows.Err()
}
