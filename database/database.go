// Package database is the record store for reports and mail recipients.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"road-report-service/config"
	"road-report-service/models"
)

// ErrNotFound marks operations on rows that do not exist, as opposed to
// connection or query failures.
var ErrNotFound = errors.New("not found")

// Database handles all database operations
type Database struct {
	db *sql.DB
}

// NewDatabase opens a connection pool against the configured MySQL server.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// EnsureTables creates the report and recipient tables if they don't exist.
// type and details are stored HTML-escaped; escaping expands a rune to at
// most 5 characters, so those columns hold 5x the validation caps.
func (d *Database) EnsureTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id CHAR(36) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status ENUM('未処理', '処理済') NOT NULL DEFAULT '未処理',
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			type VARCHAR(250) NOT NULL,
			details VARCHAR(500) NOT NULL DEFAULT '',
			map_link VARCHAR(255) NOT NULL,
			photo_url VARCHAR(512) NOT NULL DEFAULT '',
			storage_path VARCHAR(255) NOT NULL DEFAULT '',
			reporter_id VARCHAR(64) NOT NULL,
			PRIMARY KEY (id),
			INDEX reports_created_at (created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS mail_recipients (
			id CHAR(36) NOT NULL,
			name VARCHAR(128) NOT NULL,
			email VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure tables: %w", err)
		}
	}

	log.Info("Report and recipient tables ensured")
	return nil
}

// SaveReport inserts one report row. The caller assigns the identifier and
// the creation timestamp; every submission produces a brand-new row, so two
// identical submissions yield two distinct reports.
func (d *Database) SaveReport(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (id, created_at, status, latitude, longitude, type, details, map_link, photo_url, storage_path, reporter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		r.ID, r.CreatedAt, r.Status, r.Latitude, r.Longitude,
		r.Type, r.Details, r.MapLink, r.PhotoURL, r.StoragePath, r.ReporterID)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	log.Infof("Report %s saved (type=%s, reporter=%s)", r.ID, r.Type, r.ReporterID)
	return nil
}

// ListReports returns the most recent reports, newest first.
func (d *Database) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	query := `
		SELECT id, created_at, status, latitude, longitude, type, details, map_link, photo_url, storage_path, reporter_id
		FROM reports
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		err := rows.Scan(&r.ID, &r.CreatedAt, &r.Status, &r.Latitude, &r.Longitude,
			&r.Type, &r.Details, &r.MapLink, &r.PhotoURL, &r.StoragePath, &r.ReporterID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// UpdateReportStatus sets a report's triage status. Last write wins; status
// updates carry no optimistic concurrency check.
func (d *Database) UpdateReportStatus(ctx context.Context, id, status string) error {
	result, err := d.db.ExecContext(ctx, "UPDATE reports SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// The status may already hold the requested value; only report
		// missing rows as errors.
		var exists int
		if err := d.db.QueryRowContext(ctx, "SELECT 1 FROM reports WHERE id = ?", id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("report %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to check report existence: %w", err)
		}
	}

	log.Infof("Report %s status set to %s", id, status)
	return nil
}

// ListRecipients returns all registered notification recipients ordered by
// name.
func (d *Database) ListRecipients(ctx context.Context) ([]models.Recipient, error) {
	query := `
		SELECT id, name, email, created_at
		FROM mail_recipients
		ORDER BY name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}

	return recipients, nil
}

// AddRecipient registers a notification recipient.
func (d *Database) AddRecipient(ctx context.Context, name, email string) (*models.Recipient, error) {
	recipient := &models.Recipient{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}

	query := "INSERT INTO mail_recipients (id, name, email, created_at) VALUES (?, ?, ?, ?)"
	_, err := d.db.ExecContext(ctx, query, recipient.ID, recipient.Name, recipient.Email, recipient.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add recipient: %w", err)
	}

	log.Infof("Recipient %s added (%s)", recipient.ID, recipient.Email)
	return recipient, nil
}

// DeleteRecipient removes a recipient by id.
func (d *Database) DeleteRecipient(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM mail_recipients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recipient %s: %w", id, ErrNotFound)
	}

	log.Infof("Recipient %s deleted", id)
	return nil
}
