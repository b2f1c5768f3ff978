package service

import (
	"context"
	"database/sql"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Health status constants
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusUnhealthy    = "unhealthy"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// HealthStatus represents the overall health status of the application
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Boards    map[string]int    `json:"boards,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
}

// Pinger checks database connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueDialer checks broker connectivity
type QueueDialer func(url string) error

// DialAMQP opens and closes a broker connection
func DialAMQP(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	return conn.Close()
}

// HealthChecker handles health check operations
type HealthChecker struct {
	db       Pinger
	queueURL string
	dial     QueueDialer
	stores   []*MessageStore
	version  string
}

// NewHealthService creates a new HealthChecker. db and dial may be nil when
// the dependency is not configured; it is then reported as disconnected.
func NewHealthService(db *sql.DB, queueURL, version string, stores ...*MessageStore) *HealthChecker {
	h := &HealthChecker{
		queueURL: queueURL,
		dial:     DialAMQP,
		stores:   stores,
		version:  version,
	}
	if db != nil {
		h.db = db
	}
	return h
}

// NewHealthChecker creates a HealthChecker from explicit dependencies
func NewHealthChecker(db Pinger, queueURL string, dial QueueDialer, version string, stores ...*MessageStore) *HealthChecker {
	return &HealthChecker{
		db:       db,
		queueURL: queueURL,
		dial:     dial,
		stores:   stores,
		version:  version,
	}
}

// checkDatabase verifies PostgreSQL connectivity with a timeout
func (h *HealthChecker) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return StatusDisconnected
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// checkQueue verifies RabbitMQ connectivity
func (h *HealthChecker) checkQueue() string {
	if h.dial == nil || h.queueURL == "" {
		return StatusDisconnected
	}
	if err := h.dial(h.queueURL); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// determineOverallStatus calculates the overall health status based on service statuses
func (h *HealthChecker) determineOverallStatus(services map[string]string) string {
	// Boards are served from memory, so only a broken database is fatal
	if services["database"] == StatusDisconnected {
		return StatusUnhealthy
	}
	if services["queue"] == StatusDisconnected {
		return StatusDegraded
	}
	return StatusHealthy
}

// CheckHealth performs health checks on all dependencies and returns the overall status
func (h *HealthChecker) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	services := map[string]string{
		"database": h.checkDatabase(ctx),
		"queue":    h.checkQueue(),
	}

	boards := make(map[string]int, len(h.stores))
	for _, s := range h.stores {
		boards[s.Board()] = s.Len()
	}

	return &HealthStatus{
		Status:    h.determineOverallStatus(services),
		Services:  services,
		Boards:    boards,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}, nil
}
