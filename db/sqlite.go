// Package db stores prediction history and training runs in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrClosed = errors.New("history store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT,
    model VARCHAR(50) NOT NULL,
    message TEXT NOT NULL,
    category VARCHAR(20) NOT NULL,
    class_id INTEGER NOT NULL,
    confidence REAL,
    cached INTEGER DEFAULT 0,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    model_name VARCHAR(50) NOT NULL,
    artifact TEXT,
    accuracy REAL,
    precision REAL,
    recall REAL,
    f1 REAL,
    trained_at DATETIME NOT NULL,
    data_points INTEGER
);
`

// Store wraps the SQLite handle. Methods are safe for concurrent use; calls
// after Close return ErrClosed.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// Open creates the database file if needed and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	if s == nil || s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) handle() (*sql.DB, error) {
	if s == nil || s.closed.Load() {
		return nil, ErrClosed
	}
	return s.db, nil
}

type Prediction struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Model      string    `json:"model"`
	Message    string    `json:"message"`
	Category   string    `json:"category"`
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	Cached     bool      `json:"cached"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, p Prediction) error {
	conn, err := s.handle()
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err = conn.ExecContext(ctx, `
        INSERT INTO predictions (request_id, model, message, category, class_id, confidence, cached, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RequestID, p.Model, p.Message, p.Category, p.ClassID, p.Confidence, p.Cached, p.CreatedAt)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	conn, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := conn.QueryContext(ctx, `
        SELECT id, request_id, model, message, category, class_id, confidence, cached, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0, limit)
	for rows.Next() {
		var p Prediction
		var requestID sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&p.ID, &requestID, &p.Model, &p.Message, &p.Category, &p.ClassID,
			&confidence, &p.Cached, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.RequestID = requestID.String
		p.Confidence = confidence.Float64
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Artifact   string    `json:"artifact"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	F1         float64   `json:"f1"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, entries []TrainingLog) error {
	conn, err := s.handle()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO training_log (model_name, artifact, accuracy, precision, recall, f1, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.TrainedAt.IsZero() {
			e.TrainedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, e.ModelName, e.Artifact, e.Accuracy, e.Precision, e.Recall,
			e.F1, e.TrainedAt, e.DataPoints); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	conn, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
        SELECT model_name, artifact, accuracy, precision, recall, f1, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var artifact sql.NullString
		if err := rows.Scan(&log.ModelName, &artifact, &log.Accuracy, &log.Precision, &log.Recall,
			&log.F1, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		log.Artifact = artifact.String
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
