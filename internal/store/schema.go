package store

import (
	"context"
	"fmt"
	"strings"
)

// Tables are created without foreign keys or secondary indexes so the same
// DDL runs on MySQL, Postgres and SQLite. Only the timestamp type differs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(36)  PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		name          VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(32)  NOT NULL,
		roll_number   VARCHAR(64)  NOT NULL DEFAULT '',
		wing          VARCHAR(128) NOT NULL DEFAULT '',
		created_at    {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mentors (
		id      VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS general_secretaries (
		id      VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS volunteers (
		id              VARCHAR(36)      PRIMARY KEY,
		user_id         VARCHAR(36)      NOT NULL UNIQUE,
		mentor_id       VARCHAR(36),
		total_hours     DOUBLE PRECISION NOT NULL DEFAULT 0,
		events_attended INTEGER          NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id             VARCHAR(36)      PRIMARY KEY,
		name           VARCHAR(255)     NOT NULL,
		event_date     DATE             NOT NULL,
		duration_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		location       VARCHAR(255)     NOT NULL DEFAULT '',
		created_by     VARCHAR(36)      NOT NULL,
		created_at     {{ts}}           NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id           VARCHAR(36)      PRIMARY KEY,
		volunteer_id VARCHAR(36)      NOT NULL,
		event_id     VARCHAR(36)      NOT NULL,
		marked_by    VARCHAR(36)      NOT NULL,
		marked_at    {{ts}}           NOT NULL,
		hours_given  DOUBLE PRECISION NOT NULL DEFAULT 0,
		status       VARCHAR(16)      NOT NULL,
		UNIQUE (volunteer_id, event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hours_modification_log (
		id           VARCHAR(36)      PRIMARY KEY,
		volunteer_id VARCHAR(36)      NOT NULL,
		event_id     VARCHAR(36)      NOT NULL,
		modified_by  VARCHAR(36)      NOT NULL,
		old_hours    DOUBLE PRECISION NOT NULL,
		new_hours    DOUBLE PRECISION NOT NULL,
		modified_at  {{ts}}           NOT NULL,
		reason       TEXT             NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS galleries (
		id         VARCHAR(36)  PRIMARY KEY,
		event_id   VARCHAR(36)  NOT NULL,
		title      VARCHAR(255) NOT NULL,
		created_by VARCHAR(36)  NOT NULL,
		created_at {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		id          VARCHAR(36)   PRIMARY KEY,
		gallery_id  VARCHAR(36)   NOT NULL,
		uploaded_by VARCHAR(36)   NOT NULL,
		media_type  VARCHAR(16)   NOT NULL,
		url         VARCHAR(1024) NOT NULL,
		public_id   VARCHAR(255)  NOT NULL DEFAULT '',
		description VARCHAR(1024) NOT NULL DEFAULT '',
		uploaded_at {{ts}}        NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS donation_campaigns (
		id         VARCHAR(36)  PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		start_date DATE         NOT NULL,
		end_date   DATE         NOT NULL,
		created_by VARCHAR(36)  NOT NULL,
		created_at {{ts}}       NOT NULL
	)`,
}

func (d *DB) timestampType() string {
	switch d.Dialect {
	case MySQL:
		return "DATETIME(6)"
	default:
		return "TIMESTAMP"
	}
}

// Migrate creates any missing tables. Statements run one at a time because
// the MySQL driver rejects multi-statement exec by default.
func (d *DB) Migrate(ctx context.Context) error {
	ts := d.timestampType()
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
