package storage

import (
	"time"

	"github.com/google/uuid"

	"gdpetl/internal/etl"
)

// RunLog is a historical record of a pipeline run.
type RunLog struct {
	ID            string    `json:"id"`
	JobName       string    `json:"jobName"`
	SourceURL     string    `json:"sourceUrl"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Status        string    `json:"status"`
	State         string    `json:"state"`
	RowsExtracted int       `json:"rowsExtracted"`
	RowsWritten   int       `json:"rowsWritten"`
	QueryRows     int       `json:"queryRows"`
	Error         string    `json:"error,omitempty"`
}

// NewRunLog copies the outcome of a run.
func NewRunLog(job etl.Job, res *etl.RunResult) *RunLog {
	return &RunLog{
		ID:            res.RunID,
		JobName:       job.Name,
		SourceURL:     job.SourceURL,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.StartedAt.Add(res.Duration),
		Status:        res.Status,
		State:         string(res.State),
		RowsExtracted: res.RowsExtracted,
		RowsWritten:   res.RowsWritten,
		QueryRows:     res.QueryRows,
		Error:         res.Error,
	}
}

// ETLStore implements persistence for pipeline run logs.
type ETLStore struct {
	db *DB
}

// NewETLStore creates a new ETLStore.
func NewETLStore(db *DB) *ETLStore {
	return &ETLStore{db: db}
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ETLStore) CreateRunLog(log *RunLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO etl_runs (id, job_name, source_url, started_at, finished_at, status, state,
		 rows_extracted, rows_written, query_rows, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobName, log.SourceURL, log.StartedAt, log.FinishedAt, log.Status, log.State,
		log.RowsExtracted, log.RowsWritten, log.QueryRows, log.Error,
	)
	return err
}

// ListRunLogs returns the most recent runs of jobName, newest first. An
// empty jobName lists runs of every job.
func (s *ETLStore) ListRunLogs(jobName string, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT id, job_name, source_url, started_at, finished_at, status, state,
		 rows_extracted, rows_written, query_rows, error
		 FROM etl_runs WHERE (? = '' OR job_name = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		jobName, jobName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var l RunLog
		if err := rows.Scan(
			&l.ID, &l.JobName, &l.SourceURL, &l.StartedAt, &l.FinishedAt, &l.Status, &l.State,
			&l.RowsExtracted, &l.RowsWritten, &l.QueryRows, &l.Error,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
