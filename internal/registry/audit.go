package registry

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// ClickHouseAuditConfig configures the durable StateChange audit sink.
type ClickHouseAuditConfig struct {
	Address  string
	Database string
	Username string
	Password string
	TLS      bool
}

// auditEntry mirrors StateChange in ClickHouse's column-tag convention.
type auditEntry struct {
	Timestamp  time.Time `ch:"timestamp"`
	Kind       string    `ch:"kind"`
	ResourceID string    `ch:"resource_id"`
	OldState   string    `ch:"old_state"`
	NewState   string    `ch:"new_state"`
	LabID      string    `ch:"lab_id"`
	Severity   string    `ch:"severity"`
}

// ClickHouseAudit is an AuditSink that batches StateChanges and flushes
// them to ClickHouse on an interval, so Record never blocks the
// publisher on network I/O.
type ClickHouseAudit struct {
	conn   driver.Conn
	logger *zap.Logger

	mu      sync.Mutex
	pending []auditEntry

	flush     chan struct{}
	stop      chan struct{}
	flushedAt time.Time
}

// NewClickHouseAudit dials ClickHouse and starts the background flusher.
func NewClickHouseAudit(cfg ClickHouseAuditConfig, logger *zap.Logger) (*ClickHouseAudit, error) {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout: 30 * time.Second,
	}
	if cfg.TLS {
		opts.TLS = &tls.Config{InsecureSkipVerify: false}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: connect clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("registry: ping clickhouse: %w", err)
	}

	a := &ClickHouseAudit{
		conn:   conn,
		logger: logger,
		flush:  make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go a.loop()
	return a, nil
}

// Record enqueues e for the next flush; it never blocks on the network.
func (a *ClickHouseAudit) Record(e StateChange) {
	a.mu.Lock()
	a.pending = append(a.pending, auditEntry{
		Timestamp:  e.Timestamp,
		Kind:       string(e.Kind),
		ResourceID: e.ResourceID,
		OldState:   string(e.OldState),
		NewState:   string(e.NewState),
		LabID:      e.LabID,
		Severity:   e.Severity,
	})
	a.mu.Unlock()

	select {
	case a.flush <- struct{}{}:
	default:
	}
}

func (a *ClickHouseAudit) loop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			a.drain()
			return
		case <-a.flush:
		case <-ticker.C:
		}
		a.drain()
	}
}

func (a *ClickHouseAudit) drain() {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chBatch, err := a.conn.PrepareBatch(ctx, `INSERT INTO state_change_audit (
		timestamp, kind, resource_id, old_state, new_state, lab_id, severity
	)`)
	if err != nil {
		a.logger.Error("registry: prepare audit batch", zap.Error(err))
		return
	}

	for _, entry := range batch {
		if err := chBatch.Append(
			entry.Timestamp, entry.Kind, entry.ResourceID, entry.OldState,
			entry.NewState, entry.LabID, entry.Severity,
		); err != nil {
			a.logger.Error("registry: append audit entry", zap.Error(err))
			return
		}
	}

	if err := chBatch.Send(); err != nil {
		a.logger.Error("registry: send audit batch", zap.Error(err))
	}
}

// Close flushes any pending entries and closes the connection.
func (a *ClickHouseAudit) Close() error {
	close(a.stop)
	return a.conn.Close()
}
