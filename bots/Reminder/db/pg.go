package db

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"reminderbot/bot"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

const DefaultTimeZone = "UTC"

// pgxConn is the part of pgxpool.Pool used by the store.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Database is a Store backed by PostgreSQL.
type Database struct {
	db      pgxConn
	clk     clock.Clock
	Timeout time.Duration
}

// Init connects to the database and creates missing tables. The connection
// string should look like
// postgresql://localhost:5432/reminders?user=admn&password=passwd
func Init(ctx context.Context, connStr string, attempts int, delay, timeout time.Duration) (*Database, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing connection string")
	}

	if attempts < 1 {
		attempts = 1
	}

	var pingErr error
	ok := bot.RobustExecute(attempts, delay, func() bool {
		c, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		pingErr = pool.Ping(c)
		return pingErr == nil
	})
	if !ok {
		pool.Close()
		return nil, errors.Wrap(pingErr, "failed connecting to database")
	}

	d := newDatabase(pool, clock.New(), timeout)
	if err := d.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

func newDatabase(conn pgxConn, clk clock.Clock, timeout time.Duration) *Database {
	return &Database{db: conn, clk: clk, Timeout: timeout}
}

func (d *Database) EnsureSchema(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if _, err := d.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed creating schema")
	}
	return nil
}

func (d *Database) Close() {
	d.db.Close()
}

func (d *Database) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

func (d *Database) CreateRepeat(ctx context.Context, usr int64) (*Repeat, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	r := Repeat{ID: uuid.New(), UserID: usr, CreatedAt: d.clk.Now().UTC()}
	if _, err := d.db.Exec(ctx, `INSERT INTO repeat_reminders(id, user_id, days, saved, created_at)
VALUES($1, $2, $3, FALSE, $4)`, r.ID, usr, []int32{}, r.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed inserting repeat reminder")
	}
	return &r, nil
}

func (d *Database) GetRepeat(ctx context.Context, id uuid.UUID) (*Repeat, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	row := d.db.QueryRow(ctx, `SELECT id, user_id, title, remind_at, days, saved, created_at
FROM repeat_reminders
WHERE id=$1`, id)

	r, err := scanRepeat(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching repeat reminder")
	}
	return r, nil
}

func (d *Database) UpdateRepeat(ctx context.Context, r *Repeat) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tag, err := d.db.Exec(ctx, `UPDATE repeat_reminders
SET title=$1, remind_at=$2, days=$3, saved=saved OR $4
WHERE id=$5`, nullString(r.Title), r.minutes(), r.Days.ints(), r.Saved, r.ID)
	if err != nil {
		return errors.Wrap(err, "failed updating repeat reminder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) RemoveRepeat(ctx context.Context, r *Repeat) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tag, err := d.db.Exec(ctx, `DELETE FROM repeat_reminders WHERE id=$1`, r.ID)
	if err != nil {
		return errors.Wrap(err, "failed deleting repeat reminder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) ListRepeats(ctx context.Context, usr int64) ([]Repeat, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.db.Query(ctx, `SELECT id, user_id, title, remind_at, days, saved, created_at
FROM repeat_reminders
WHERE user_id=$1 AND saved
ORDER BY created_at, id`, usr)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying repeat reminders")
	}
	defer rows.Close()

	var res []Repeat
	for rows.Next() {
		r, err := scanRepeat(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning repeat reminder")
		}
		res = append(res, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading repeat reminders")
	}
	return res, nil
}

func scanRepeat(row pgx.Row) (*Repeat, error) {
	var r Repeat
	var title sql.NullString
	var at sql.NullInt32
	var days []int32

	if err := row.Scan(&r.ID, &r.UserID, &title, &at, &days, &r.Saved, &r.CreatedAt); err != nil {
		return nil, err
	}

	wd, err := weekdaysFromInts(days)
	if err != nil {
		return nil, err
	}

	r.Title = title.String
	r.Days = wd
	if at.Valid {
		t := timeOfDayFromMinutes(int(at.Int32))
		r.Time = &t
	}
	return &r, nil
}

func (d *Database) CreateOnce(ctx context.Context, usr int64) (*Once, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	o := Once{ID: uuid.New(), UserID: usr, TimeZone: DefaultTimeZone, CreatedAt: d.clk.Now().UTC()}
	if _, err := d.db.Exec(ctx, `INSERT INTO once_reminders(id, user_id, timezone, saved, created_at)
VALUES($1, $2, $3, FALSE, $4)`, o.ID, usr, o.TimeZone, o.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed inserting once reminder")
	}
	return &o, nil
}

func (d *Database) GetOnce(ctx context.Context, id uuid.UUID) (*Once, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	row := d.db.QueryRow(ctx, `SELECT id, user_id, title, remind_at, timezone, saved, created_at
FROM once_reminders
WHERE id=$1`, id)

	o, err := scanOnce(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching once reminder")
	}
	return o, nil
}

func (d *Database) UpdateOnce(ctx context.Context, o *Once) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tag, err := d.db.Exec(ctx, `UPDATE once_reminders
SET title=$1, remind_at=$2, timezone=$3, saved=saved OR $4
WHERE id=$5`, nullString(o.Title), nullTime(o.At), o.TimeZone, o.Saved, o.ID)
	if err != nil {
		return errors.Wrap(err, "failed updating once reminder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) RemoveOnce(ctx context.Context, o *Once) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	tag, err := d.db.Exec(ctx, `DELETE FROM once_reminders WHERE id=$1`, o.ID)
	if err != nil {
		return errors.Wrap(err, "failed deleting once reminder")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) ListOnces(ctx context.Context, usr int64) ([]Once, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := d.db.Query(ctx, `SELECT id, user_id, title, remind_at, timezone, saved, created_at
FROM once_reminders
WHERE user_id=$1 AND saved
ORDER BY created_at, id`, usr)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying once reminders")
	}
	defer rows.Close()

	var res []Once
	for rows.Next() {
		o, err := scanOnce(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning once reminder")
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading once reminders")
	}
	return res, nil
}

func scanOnce(row pgx.Row) (*Once, error) {
	var o Once
	var title sql.NullString
	var at sql.NullTime

	if err := row.Scan(&o.ID, &o.UserID, &title, &at, &o.TimeZone, &o.Saved, &o.CreatedAt); err != nil {
		return nil, err
	}

	o.Title = title.String
	if at.Valid {
		o.At = at.Time
	}
	return &o, nil
}

func (r *Repeat) minutes() any {
	if r.Time == nil {
		return nil
	}
	return r.Time.Minutes()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
