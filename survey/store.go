package survey

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the accumulated session database. Every table is keyed the way
// downstream GIS layers expect: data by point ID, extents and current by
// session ID (ID_area), path by line ID.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the sqlite database at path and migrates it to
// the latest schema.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	st := &Store{db: db}
	if err := st.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// migrateUp runs all pending embedded migrations
func (st *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(st.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	// m is not closed: that would close the shared connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Close closes the database
func (st *Store) Close() error {
	return st.db.Close()
}

// NewRunID returns a fresh processing run id
func NewRunID() string {
	return uuid.NewString()
}

// BeginRun registers a processing run
func (st *Store) BeginRun(ctx context.Context, runID, overwrite string, files int) error {
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, overwrite, files) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UTC(), overwrite, files)
	if err != nil {
		return fmt.Errorf("registering run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run
func (st *Store) FinishRun(ctx context.Context, runID string, processed, failed int) error {
	_, err := st.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE run_id = ?`,
		time.Now().UTC(), processed, failed, runID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// SaveSessions writes the sessions of one run in a single transaction.
//
//   - full:  every table is emptied first; within the batch the last row per key wins
//   - last:  rows with an existing key are replaced
//   - first: rows with an existing key are kept
func (st *Store) SaveSessions(ctx context.Context, runID string, sessions []*Session, overwrite string) error {
	var verb string
	switch overwrite {
	case OverwriteFull, OverwriteLast:
		verb = "INSERT OR REPLACE"
	case OverwriteFirst:
		verb = "INSERT OR IGNORE"
	default:
		return fmt.Errorf("unknown overwrite mode %q", overwrite)
	}

	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if overwrite == OverwriteFull {
		for _, table := range []string{"data", "extents", "path", `"current"`} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
	}

	for _, s := range sessions {
		if err := saveSession(ctx, tx, verb, runID, s); err != nil {
			return fmt.Errorf("session %s: %w", s.Info.ID, err)
		}
	}
	return tx.Commit()
}

func saveSession(ctx context.Context, tx *sql.Tx, verb, runID string, s *Session) error {
	area := s.Info.ID

	for _, p := range s.Points {
		// rows without a position are not stored
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		var ts interface{}
		if !p.Time.IsZero() {
			ts = p.Time
		}
		_, err := tx.ExecContext(ctx, verb+` INTO data
			(ID, ID_area, run_id, attribute, point_id, ID_line, datetime, x, y, lon, lat,
			 voltage_raw, voltage_k, voltage_norm, compass, ref_facing, color, geometry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, area, runID, string(p.Attribute), p.PointID, nullString(p.LineID), ts,
			p.X, p.Y, nullFloat(p.Lon), nullFloat(p.Lat),
			nullFloat(p.VoltageRaw), nullFloat(p.VoltageK), nullFloat(p.VoltageNorm),
			nullFloat(p.Compass), nullFloat(p.RefFacing), nullString(p.ColorNorm),
			wkt.MarshalString(p.Position()))
		if err != nil {
			return fmt.Errorf("data row %s: %w", p.ID, err)
		}
	}

	if ring := s.Footprint.Outline(); len(ring) > 3 {
		c := s.Footprint.Centroid()
		var start, end interface{}
		if !s.Footprint.Start.IsZero() {
			start, end = s.Footprint.Start, s.Footprint.End
		}
		_, err := tx.ExecContext(ctx, verb+` INTO extents
			(ID_area, run_id, sensor, start_time, end_time, cmin, cmax, ref_angle, x, y, geometry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			area, runID, s.Info.Sensor, start, end,
			nullFloat(s.Colors.Min), nullFloat(s.Colors.Max), nullFloat(s.RefAngle),
			c[0], c[1], wkt.MarshalString(orb.Polygon{ring}))
		if err != nil {
			return fmt.Errorf("extents row: %w", err)
		}
	}

	for _, l := range s.Lines {
		if len(l.Geometry) < 2 {
			continue
		}
		start := l.Geometry[0]
		_, err := tx.ExecContext(ctx, verb+` INTO path
			(ID_line, ID_area, run_id, line, line_heading, line_compass, line_length, x, y, geometry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, area, runID, l.Index, nullFloat(l.Heading), nullFloat(l.Compass), nullFloat(l.Length),
			start[0], start[1], wkt.MarshalString(l.Geometry))
		if err != nil {
			return fmt.Errorf("path row %s: %w", l.ID, err)
		}
	}

	if len(s.Current) > 1 {
		c := s.Current[0]
		_, err := tx.ExecContext(ctx, verb+` INTO "current" (ID_area, run_id, x, y, geometry) VALUES (?, ?, ?, ?, ?)`,
			area, runID, c[0], c[1], wkt.MarshalString(s.Current))
		if err != nil {
			return fmt.Errorf("current row: %w", err)
		}
	}
	return nil
}

// StoredSession is the extents row of one session
type StoredSession struct {
	ID       string
	RunID    string
	Sensor   string
	CMin     sql.NullFloat64
	CMax     sql.NullFloat64
	RefAngle sql.NullFloat64
	Outline  orb.Polygon
}

// Sessions lists the stored session extents ordered by id
func (st *Store) Sessions(ctx context.Context) ([]StoredSession, error) {
	rows, err := st.db.QueryContext(ctx,
		`SELECT ID_area, run_id, sensor, cmin, cmax, ref_angle, geometry FROM extents ORDER BY ID_area`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredSession
	for rows.Next() {
		var s StoredSession
		var geom string
		if err := rows.Scan(&s.ID, &s.RunID, &s.Sensor, &s.CMin, &s.CMax, &s.RefAngle, &geom); err != nil {
			return nil, err
		}
		poly, err := wkt.UnmarshalPolygon(geom)
		if err != nil {
			return nil, fmt.Errorf("extents %s: %w", s.ID, err)
		}
		s.Outline = poly
		out = append(out, s)
	}
	return out, rows.Err()
}

// RowRunIDs returns key -> run id for every row of a table. Used to check
// which run wrote which row.
func (st *Store) RowRunIDs(ctx context.Context, table string) (map[string]string, error) {
	var key string
	switch table {
	case "data":
		key = "ID"
	case "extents", "current":
		key = "ID_area"
	case "path":
		key = "ID_line"
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}

	rows, err := st.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, run_id FROM "%s"`, key, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, run string
		if err := rows.Scan(&k, &run); err != nil {
			return nil, err
		}
		out[k] = run
	}
	return out, rows.Err()
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
