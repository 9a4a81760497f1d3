package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mark3748/helpdesk-ans/internal/notify"
	"github.com/mark3748/helpdesk-ans/internal/sla"
)

// DB is the subset of pgxpool.Pool the worker uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Sender delivers notifications to the workflow endpoint.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

// HolidaySource resolves the non-working dates of one or more years.
type HolidaySource interface {
	Resolve(ctx context.Context, years ...int) (sla.HolidaySet, error)
}

func handleJob(ctx context.Context, job notify.Job, s Sender) error {
	switch job.Type {
	case notify.JobWorkflow:
		var n notify.Notification
		if err := json.Unmarshal(job.Data, &n); err != nil {
			return fmt.Errorf("unmarshal workflow job: %w", err)
		}
		return s.Send(ctx, n)
	default:
		log.Warn().Str("type", job.Type).Msg("unknown job type")
		return nil
	}
}

// consume processes jobs until ctx is cancelled. Failures are logged and the
// loop moves on to the next job.
func consume(ctx context.Context, q redis.Cmdable, s Sender, wait time.Duration) {
	for ctx.Err() == nil {
		job, err := notify.Next(ctx, q, wait)
		switch {
		case errors.Is(err, notify.ErrEmptyQueue):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("blpop")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if err := handleJob(ctx, job, s); err != nil {
			if errors.Is(err, notify.ErrNoEndpoint) {
				log.Debug().Str("type", job.Type).Msg("workflow endpoint not configured, dropping job")
				continue
			}
			log.Error().Err(err).Str("type", job.Type).Msg("job failed")
		}
	}
}

// breachMonitor marks tickets whose deadline passed and announces them.
type breachMonitor struct {
	DB       DB
	Queue    redis.Cmdable
	Calendar sla.WorkCalendar
	Holidays HolidaySource
	Now      func() time.Time
}

const breachColumns = `id::text, number, title, coalesce(requester,''), tier, required_hours, opened_at, due_at`

const markBreached = `update tickets set breached_at=$1, updated_at=$1
where breached_at is null and resolved_at is null and due_at is not null and due_at <= $1
returning ` + breachColumns

// claimPending takes every breach whose notification has not been queued yet,
// including ones left over from an earlier failed enqueue.
const claimPending = `update tickets set breach_notified_at=$1
where breached_at is not null and breach_notified_at is null
returning ` + breachColumns

const releasePending = `update tickets set breach_notified_at=null where id=$1`

// Check marks every overdue ticket as breached in one statement and records a
// timeline event for each. Pending breach notifications are then queued; a
// ticket whose enqueue fails is released and retried on the next check. It
// returns the number of tickets newly marked.
func (m *breachMonitor) Check(ctx context.Context) (int, error) {
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	breached, err := m.scan(ctx, markBreached, now)
	if err != nil {
		return 0, err
	}
	for _, n := range breached {
		if err := notify.Record(ctx, m.DB, n.TicketID, notify.EventSLABreached, n); err != nil {
			log.Warn().Err(err).Str("ticket", n.TicketID).Msg("record breach event")
		}
		log.Warn().Str("ticket", n.TicketID).Str("tier", n.Tier).Int("elapsed_work_minutes", n.ElapsedWorkMinutes).Msg("SLA breached")
	}
	if m.Queue == nil {
		return len(breached), nil
	}
	pending, err := m.scan(ctx, claimPending, now)
	if err != nil {
		return len(breached), fmt.Errorf("claim breach notifications: %w", err)
	}
	for _, n := range pending {
		if err := notify.Enqueue(ctx, m.Queue, n); err != nil {
			log.Error().Err(err).Str("ticket", n.TicketID).Msg("enqueue breach, will retry")
			if _, err := m.DB.Exec(ctx, releasePending, n.TicketID); err != nil {
				log.Error().Err(err).Str("ticket", n.TicketID).Msg("release breach notification")
			}
		}
	}
	return len(breached), nil
}

func (m *breachMonitor) scan(ctx context.Context, q string, now time.Time) ([]notify.Notification, error) {
	rows, err := m.DB.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var opened, due time.Time
		if err := rows.Scan(&n.TicketID, &n.Number, &n.Title, &n.Requester, &n.Tier, &n.RequiredHours, &opened, &due); err != nil {
			rows.Close()
			return nil, err
		}
		opened, due = opened.In(m.Calendar.Location), due.In(m.Calendar.Location)
		n.OpenedAt, n.DueAt = &opened, &due
		n.Event = notify.EventSLABreached
		out = append(out, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ElapsedWorkMinutes = m.elapsedMinutes(ctx, *out[i].OpenedAt, now)
	}
	return out, nil
}

func (m *breachMonitor) elapsedMinutes(ctx context.Context, opened, now time.Time) int {
	var hs sla.HolidaySet
	if m.Holidays != nil {
		first, last := opened.In(m.Calendar.Location).Year(), now.In(m.Calendar.Location).Year()
		years := []int{}
		for y := first; y <= last; y++ {
			years = append(years, y)
		}
		var err error
		if hs, err = m.Holidays.Resolve(ctx, years...); err != nil {
			log.Warn().Err(err).Msg("resolve holidays")
		}
	}
	return int(m.Calendar.BusinessDuration(opened, now, hs) / time.Minute)
}

// Run checks for breaches every interval until ctx is cancelled.
func (m *breachMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil {
				log.Error().Err(err).Msg("breach check")
			}
		}
	}
}
