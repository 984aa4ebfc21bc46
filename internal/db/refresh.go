package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Refresh statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Refresh is one attempt to download and extract the static feed
type Refresh struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	SourceURL  string    `json:"source_url"`
	FileCount  int       `json:"file_count"`
	Error      string    `json:"error,omitempty"`
}

// NewRefresh starts a refresh record with a fresh id
func NewRefresh(sourceURL string, startedAt time.Time) Refresh {
	return Refresh{
		ID:        uuid.New(),
		StartedAt: startedAt.UTC(),
		SourceURL: sourceURL,
	}
}

// Succeed marks the refresh finished with the number of extracted files
func (r *Refresh) Succeed(fileCount int, at time.Time) {
	r.Status = StatusSuccess
	r.FileCount = fileCount
	r.Error = ""
	r.FinishedAt = at.UTC()
}

// Fail marks the refresh finished with an error
func (r *Refresh) Fail(err error, at time.Time) {
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = at.UTC()
}

// Store persists the refresh log
type Store interface {
	RecordRefresh(ctx context.Context, r Refresh) error
	// LastRefresh returns nil when nothing has been recorded yet
	LastRefresh(ctx context.Context) (*Refresh, error)
	PruneRefreshes(ctx context.Context, retention time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks Postgres when databaseURL is set and SQLite otherwise, and
// makes sure the refresh table exists
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		pg, err := ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	sqlite, err := Connect(sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := sqlite.EnsureSchema(ctx); err != nil {
		sqlite.Close()
		return nil, err
	}
	return sqlite, nil
}
