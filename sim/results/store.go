package results

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gen2sim/gen2sim/sim/rfid"

	_ "modernc.org/sqlite"
)

// Store persists run summaries in SQLite.
type Store struct {
	db *sql.DB
}

// Run is a stored summary together with the sweep it belongs to and the
// parameters it ran with.
type Run struct {
	Summary
	SweepID   string
	CreatedAt time.Time
	Params    rfid.Params
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		sweep_id       TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		seed           INTEGER NOT NULL,
		variable       TEXT NOT NULL DEFAULT '',
		value          REAL NOT NULL DEFAULT 0,
		params         TEXT NOT NULL,
		tags_created   INTEGER NOT NULL,
		tags_simulated INTEGER NOT NULL,
		rounds_per_tag REAL NOT NULL,
		inventory_prob REAL NOT NULL,
		read_tid_prob  REAL NOT NULL,
		read_tid_time  REAL NOT NULL,
		avg_collisions REAL NOT NULL,
		rounds         INTEGER NOT NULL,
		slots          INTEGER NOT NULL,
		empty_slots    INTEGER NOT NULL,
		collisions     INTEGER NOT NULL,
		lost_replies   INTEGER NOT NULL,
		q_adjustments  INTEGER NOT NULL,
		peak_q         INTEGER NOT NULL,
		num_events     INTEGER NOT NULL,
		sim_time       REAL NOT NULL,
		exit_reason    TEXT NOT NULL,
		stop_message   TEXT NOT NULL DEFAULT '',
		execution_time REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_sweep ON runs(sweep_id, value);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewSweepID returns a fresh identifier grouping the runs of one sweep.
func NewSweepID() string {
	return uuid.NewString()
}

// SaveRun stores s with the parameters it ran with. A summary without a run
// id gets a fresh one.
func (s *Store) SaveRun(ctx context.Context, sweepID string, p rfid.Params, sum *Summary) error {
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
	}
	var params bytes.Buffer
	if err := rfid.WriteParams(&params, p); err != nil {
		return errors.Wrap(err, "encode params")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := writeBackoff.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, sweep_id, created_at, seed, variable, value, params,
				tags_created, tags_simulated, rounds_per_tag, inventory_prob, read_tid_prob,
				read_tid_time, avg_collisions, rounds, slots, empty_slots, collisions,
				lost_replies, q_adjustments, peak_q, num_events, sim_time, exit_reason,
				stop_message, execution_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, sweepID, now, sum.Seed, sum.Variable, sum.Value, params.String(),
			sum.TagsCreated, sum.TagsSimulated, sum.RoundsPerTag, sum.InventoryProb, sum.ReadTIDProb,
			sum.ReadTIDTime, sum.AvgCollisions, sum.Rounds, sum.Slots, sum.EmptySlots, sum.Collisions,
			sum.LostReplies, sum.QAdjustments, sum.PeakQ, sum.NumEvents, sum.SimTime, sum.ExitReason,
			sum.StopMessage, sum.ExecutionTime,
		)
		return err
	})
	return errors.Wrapf(err, "save run %s", sum.RunID)
}

// ListRuns returns the runs of a sweep ordered by the swept value. An empty
// sweepID lists the single runs.
func (s *Store) ListRuns(ctx context.Context, sweepID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sweep_id, created_at, seed, variable, value, params,
			tags_created, tags_simulated, rounds_per_tag, inventory_prob, read_tid_prob,
			read_tid_time, avg_collisions, rounds, slots, empty_slots, collisions,
			lost_replies, q_adjustments, peak_q, num_events, sim_time, exit_reason,
			stop_message, execution_time
		 FROM runs WHERE sweep_id = ? ORDER BY value, created_at`, sweepID)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		r       Run
		created string
		params  string
	)
	err := rows.Scan(&r.RunID, &r.SweepID, &created, &r.Seed, &r.Variable, &r.Value, &params,
		&r.TagsCreated, &r.TagsSimulated, &r.RoundsPerTag, &r.InventoryProb, &r.ReadTIDProb,
		&r.ReadTIDTime, &r.AvgCollisions, &r.Rounds, &r.Slots, &r.EmptySlots, &r.Collisions,
		&r.LostReplies, &r.QAdjustments, &r.PeakQ, &r.NumEvents, &r.SimTime, &r.ExitReason,
		&r.StopMessage, &r.ExecutionTime)
	if err != nil {
		return nil, errors.Wrap(err, "scan run")
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, errors.Wrapf(err, "run %s: created_at", r.RunID)
	}
	if r.Params, err = rfid.ParseParams([]byte(params)); err != nil {
		return nil, errors.Wrapf(err, "run %s: params", r.RunID)
	}
	return &r, nil
}
