package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// LocalDatabase is a Store backed by a local SQLite file.
type LocalDatabase struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLocalDatabase opens (or creates) the SQLite file at path.
func NewLocalDatabase(path string, logger *slog.Logger) (*LocalDatabase, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
		}
	}

	logger.Info("opening local snapshot store", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.Exec(createSnapshotsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot store: init schema: %w", err)
	}
	return &LocalDatabase{db: db, logger: logger}, nil
}

func (d *LocalDatabase) StoreSnapshot(ctx context.Context, s *ReportSnapshot) error {
	d.logger.Debug("storing snapshot", "channel_id", s.ChannelID, "requested", s.Requested)

	_, err := d.db.ExecContext(ctx, upsertSnapshot,
		s.ChannelID,
		s.ChannelTitle,
		s.Requested,
		s.CreateDate.UTC().Format(snapshotTimeLayout),
		s.UpdateDate.UTC().Format(snapshotTimeLayout),
		string(s.JSONResponse),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (d *LocalDatabase) GetLatestSnapshot(ctx context.Context, channelID string, requested int) (*ReportSnapshot, error) {
	var (
		f  [7]string
		id int64
		rq int
	)
	err := d.db.QueryRowContext(ctx, selectLatestSnapshot, channelID, requested).
		Scan(&id, &f[1], &f[2], &rq, &f[4], &f[5], &f[6])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	f[0] = fmt.Sprint(id)
	f[3] = fmt.Sprint(rq)
	return snapshotFromFields(f)
}

func (d *LocalDatabase) Close() error {
	return d.db.Close()
}
