package models

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	sqlitecloud "github.com/sqlitecloud/sqlitecloud-go"
)

// Store persists report snapshots.
type Store interface {
	// StoreSnapshot inserts the snapshot or replaces the one with the same
	// channel and requested count.
	StoreSnapshot(ctx context.Context, s *ReportSnapshot) error
	// GetLatestSnapshot returns nil, nil when nothing is stored.
	GetLatestSnapshot(ctx context.Context, channelID string, requested int) (*ReportSnapshot, error)
	Close() error
}

const sqliteCloudScheme = "sqlitecloud://"

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS report_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	channel_title TEXT NOT NULL,
	requested INTEGER NOT NULL,
	create_date TEXT NOT NULL,
	update_date TEXT NOT NULL,
	json_response TEXT NOT NULL,
	CONSTRAINT unique_report_snapshot UNIQUE(channel_id, requested)
)`

const upsertSnapshot = `INSERT INTO report_snapshots
	(channel_id, channel_title, requested, create_date, update_date, json_response)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(channel_id, requested) DO UPDATE SET
		channel_title = excluded.channel_title,
		update_date = excluded.update_date,
		json_response = excluded.json_response`

const selectLatestSnapshot = `SELECT id, channel_id, channel_title, requested, create_date, update_date, json_response
	FROM report_snapshots
	WHERE channel_id = ? AND requested = ?
	ORDER BY update_date DESC LIMIT 1`

// NewDatabase opens the snapshot store named by dsn. A sqlitecloud:// DSN
// connects to SQLite Cloud; anything else is a local SQLite file path.
func NewDatabase(dsn string, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(dsn, sqliteCloudScheme) {
		return NewCloudDatabase(dsn, logger)
	}
	return NewLocalDatabase(dsn, logger)
}

// CloudDatabase is a Store backed by SQLite Cloud.
type CloudDatabase struct {
	db     *sqlitecloud.SQCloud
	logger *slog.Logger
}

// NewCloudDatabase connects to SQLite Cloud and creates the schema.
func NewCloudDatabase(dsn string, logger *slog.Logger) (*CloudDatabase, error) {
	logger.Info("connecting to SQLite Cloud", "dsn", maskConnectionString(dsn))

	db, err := sqlitecloud.Connect(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite Cloud: %w", err)
	}

	database := &CloudDatabase{db: db, logger: logger}
	if err := database.db.Execute(createSnapshotsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return database, nil
}

// maskConnectionString hides the API key in logs
func maskConnectionString(connStr string) string {
	if i := strings.Index(connStr, "apikey="); i >= 0 {
		return connStr[:i] + "apikey=***"
	}
	return connStr
}

func (d *CloudDatabase) StoreSnapshot(ctx context.Context, s *ReportSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("storing snapshot", "channel_id", s.ChannelID, "requested", s.Requested)

	args := []interface{}{
		s.ChannelID,
		s.ChannelTitle,
		s.Requested,
		s.CreateDate.UTC().Format(snapshotTimeLayout),
		s.UpdateDate.UTC().Format(snapshotTimeLayout),
		string(s.JSONResponse),
	}
	if err := d.db.ExecuteArray(upsertSnapshot, args); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (d *CloudDatabase) GetLatestSnapshot(ctx context.Context, channelID string, requested int) (*ReportSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := d.db.SelectArray(selectLatestSnapshot, []interface{}{channelID, requested})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if result.GetNumberOfRows() == 0 {
		return nil, nil
	}

	var fields [7]string
	for i := range fields {
		v, err := result.GetStringValue(0, uint64(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot column %d: %w", i, err)
		}
		fields[i] = v
	}
	return snapshotFromFields(fields)
}

// Close closes the database connection
func (d *CloudDatabase) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func snapshotFromFields(f [7]string) (*ReportSnapshot, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(f[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}
	requested, err := strconv.Atoi(strings.TrimSpace(f[3]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse requested: %w", err)
	}
	createDate, err := parseSnapshotTime(f[4])
	if err != nil {
		return nil, err
	}
	updateDate, err := parseSnapshotTime(f[5])
	if err != nil {
		return nil, err
	}
	return &ReportSnapshot{
		ID:           id,
		ChannelID:    f[1],
		ChannelTitle: f[2],
		Requested:    requested,
		CreateDate:   createDate,
		UpdateDate:   updateDate,
		JSONResponse: json.RawMessage(f[6]),
	}, nil
}
