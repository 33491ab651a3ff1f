package optimize

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Storage persists studies and their trials.
type Storage interface {
	CreateStudy(ctx context.Context, s *Study) error
	AppendTrial(ctx context.Context, studyID string, t Trial) error
	LoadStudy(ctx context.Context, studyID string) (*Study, error)
	Close() error
}

// MemoryStorage keeps studies in process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	studies map[string]*Study
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{studies: make(map[string]*Study)}
}

// CreateStudy implements Storage.
func (m *MemoryStorage) CreateStudy(_ context.Context, s *Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studies[s.ID]; ok {
		return errors.Newf("study %s already exists", s.ID)
	}
	m.studies[s.ID] = newStudyLike(s)
	return nil
}

// AppendTrial implements Storage.
func (m *MemoryStorage) AppendTrial(_ context.Context, studyID string, t Trial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[studyID]
	if !ok {
		return errors.Wrapf(errors.ErrArtifactNotFound, "study %s", studyID)
	}
	s.record(t)
	return nil
}

// LoadStudy implements Storage. The returned study is a copy.
func (m *MemoryStorage) LoadStudy(_ context.Context, studyID string) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[studyID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrArtifactNotFound, "study %s", studyID)
	}
	out := newStudyLike(s)
	for _, t := range s.Trials {
		out.record(t)
	}
	return out, nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error { return nil }

func newStudyLike(s *Study) *Study {
	out := newStudy(s.Name, s.Sampler)
	out.ID = s.ID
	return out
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS studies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	sampler TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trials (
	study_id TEXT NOT NULL REFERENCES studies(id),
	number INTEGER NOT NULL,
	params TEXT NOT NULL,
	score REAL,
	state TEXT NOT NULL,
	error TEXT,
	duration_ms INTEGER,
	PRIMARY KEY (study_id, number)
);
`

// SQLiteStorage stores studies in a SQLite database so that the trial history
// of a search survives the process.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage opens (creating if needed) the database at path.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewArtifactError("trial database", "", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.NewArtifactError("trial database", "", path, errors.Wrap(err, "enable WAL"))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.NewArtifactError("trial database", "", path, errors.Wrap(err, "create schema"))
	}
	return &SQLiteStorage{db: db}, nil
}

// CreateStudy implements Storage.
func (s *SQLiteStorage) CreateStudy(ctx context.Context, st *Study) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO studies (id, name, sampler) VALUES (?, ?, ?)",
		st.ID, st.Name, st.Sampler,
	)
	return errors.Wrapf(err, "create study %s", st.ID)
}

// AppendTrial implements Storage.
func (s *SQLiteStorage) AppendTrial(ctx context.Context, studyID string, t Trial) error {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return errors.Wrap(err, "encode trial params")
	}
	var score sql.NullFloat64
	if t.State == TrialComplete {
		score = sql.NullFloat64{Float64: t.Score, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trials (study_id, number, params, score, state, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		studyID, t.Number, string(params), score, t.State.String(), t.Err, t.Duration.Milliseconds(),
	)
	return errors.Wrapf(err, "append trial %d", t.Number)
}

// LoadStudy implements Storage. Parameters come back as decoded JSON, so
// integers are float64.
func (s *SQLiteStorage) LoadStudy(ctx context.Context, studyID string) (*Study, error) {
	st := newStudy("", "")
	st.ID = studyID
	err := s.db.QueryRowContext(ctx,
		"SELECT name, sampler FROM studies WHERE id = ?", studyID,
	).Scan(&st.Name, &st.Sampler)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrArtifactNotFound, "study %s", studyID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load study %s", studyID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT number, params, score, state, error, duration_ms
		FROM trials WHERE study_id = ? ORDER BY number`, studyID)
	if err != nil {
		return nil, errors.Wrapf(err, "load trials of %s", studyID)
	}
	defer rows.Close()

	var trials []Trial
	for rows.Next() {
		var (
			t      Trial
			params string
			score  sql.NullFloat64
			state  string
			msg    sql.NullString
			ms     int64
		)
		if err := rows.Scan(&t.Number, &params, &score, &state, &msg, &ms); err != nil {
			return nil, errors.Wrap(err, "scan trial")
		}
		if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
			return nil, errors.Wrapf(err, "decode params of trial %d", t.Number)
		}
		t.Score = math.NaN()
		if score.Valid {
			t.Score = score.Float64
		}
		t.State = TrialFailed
		if state == TrialComplete.String() {
			t.State = TrialComplete
		}
		t.Err = msg.String
		t.Duration = time.Duration(ms) * time.Millisecond
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Number < trials[j].Number })
	for _, t := range trials {
		st.record(t)
	}
	return st, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error { return s.db.Close() }
