package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowFunc func(dest ...any) error

type fakeRow struct{ f rowFunc }

func (r fakeRow) Scan(dest ...any) error { return r.f(dest...) }

type fakeRows struct {
	data    [][]any
	i       int
	scanErr error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { return r.i < len(r.data) }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.i]
	r.i++
	for i := range dest {
		if d, ok := dest[i].(*time.Time); ok {
			*d = row[i].(time.Time)
		}
	}
	return nil
}

type fakeDB struct {
	tz       string
	start    int
	end      int
	weekend  []int32
	holidays [][]any
	scanErr  error
	missing  bool
}

func (db fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if sql == "select day from holidays where calendar_id=$1" {
		return &fakeRows{data: db.holidays, scanErr: db.scanErr}, nil
	}
	return &fakeRows{}, nil
}

func (db fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if db.missing {
		return fakeRow{f: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	return fakeRow{f: func(dest ...any) error {
		*(dest[0].(*string)) = db.tz
		*(dest[1].(*int)) = db.start
		*(dest[2].(*int)) = db.end
		*(dest[3].(*[]int32)) = db.weekend
		return nil
	}}
}

func TestLoadCalendar(t *testing.T) {
	cases := []struct {
		name     string
		db       fakeDB
		wantErr  bool
		validate func(t *testing.T, cal *Calendar)
	}{
		{
			name: "normalizes holidays",
			db: fakeDB{
				tz: "America/Bogota", start: 7, end: 17, weekend: []int32{0, 6},
				holidays: [][]any{{
					time.Date(2026, 12, 24, 15, 30, 0, 0, time.UTC), // not midnight
				}},
			},
			validate: func(t *testing.T, cal *Calendar) {
				if _, ok := cal.Extra[Date{2026, time.December, 24}]; !ok {
					t.Fatalf("expected holiday to be normalized, got %v", cal.Extra)
				}
			},
		},
		{
			name: "loads window and weekend",
			db:   fakeDB{tz: "America/New_York", start: 8, end: 16, weekend: []int32{5, 6}},
			validate: func(t *testing.T, cal *Calendar) {
				if cal.Work.StartHour != 8 || cal.Work.EndHour != 16 {
					t.Fatalf("unexpected window: %+v", cal.Work)
				}
				if _, ok := cal.Work.Weekend[time.Friday]; !ok {
					t.Fatalf("expected Friday off: %v", cal.Work.Weekend)
				}
				if _, ok := cal.Work.Weekend[time.Sunday]; ok {
					t.Fatalf("Sunday should be a workday: %v", cal.Work.Weekend)
				}
			},
		},
		{
			name: "empty weekend works every day",
			db:   fakeDB{tz: "America/Bogota", start: 7, end: 17, weekend: []int32{}},
			validate: func(t *testing.T, cal *Calendar) {
				if len(cal.Work.Weekend) != 0 {
					t.Fatalf("expected no rest days, got %v", cal.Work.Weekend)
				}
				sat := time.Date(2026, 10, 24, 9, 0, 0, 0, cal.Work.Location)
				due, err := cal.Work.Deadline(sat, 2, nil)
				if err != nil {
					t.Fatal(err)
				}
				if want := time.Date(2026, 10, 24, 11, 0, 0, 0, cal.Work.Location); !due.Equal(want) {
					t.Fatalf("expected %v got %v", want, due)
				}
			},
		},
		{
			name: "holiday scan failure",
			db: fakeDB{
				tz: "America/Bogota", start: 7, end: 17, weekend: []int32{0, 6},
				holidays: [][]any{{time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)}},
				scanErr:  errors.New("bad date"),
			},
			wantErr: true,
		},
		{
			name:    "rejects end hour past 23",
			db:      fakeDB{tz: "America/Bogota", start: 0, end: 24},
			wantErr: true,
		},
		{
			name:    "rejects inverted window",
			db:      fakeDB{tz: "America/Bogota", start: 17, end: 7},
			wantErr: true,
		},
		{
			name:    "missing calendar",
			db:      fakeDB{missing: true},
			wantErr: true,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cal, err := LoadCalendar(context.Background(), tt.db, "cal-1")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cal.Work.Location == nil || cal.Work.Location.String() != tt.db.tz {
				t.Fatalf("expected location %s, got %v", tt.db.tz, cal.Work.Location)
			}
			tt.validate(t, cal)
		})
	}
}
