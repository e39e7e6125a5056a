package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/config"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *logrus.Logger
}

const archiveTableDDL = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id UUID,
		id Int64,
		event_type LowCardinality(String),
		user_id String,
		session_id String,
		page_url String,
		country LowCardinality(String),
		app_name LowCardinality(String),
		domain LowCardinality(String),
		properties String,
		created_at DateTime64(6, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (app_name, domain, created_at)
`

// NewClickHouseDB opens the native-protocol connection used by the event archive and
// makes sure the archive table exists.
func NewClickHouseDB(cfg config.ClickHouseConfig, logger *logrus.Logger) (*ClickHouseClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("CLICKHOUSE_HOST environment variable is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "analytics-dashboard-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, archiveTableDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create archive table: %w", err)
	}

	logger.WithField("addr", options.Addr[0]).Info("Successfully connected to ClickHouse archive")
	return &ClickHouseClient{Conn: conn, log: logger}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		c.log.Info("ClickHouse connection closed")
	}
}
