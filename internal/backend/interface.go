package backend

import (
	"context"

	"kharcha/internal/amqp"
	"kharcha/internal/services"
	"kharcha/internal/sheets"
	"kharcha/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired collaborators. Publisher and Exporter are
// nil interfaces when their integration is disabled; AMQP is the concrete
// client behind Publisher, needed by the worker to consume.
type BackendResult struct {
	Store     storage.Store
	AMQP      *amqp.Client
	Publisher services.Publisher
	Exporter  sheets.PredictionExporter
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Messaging (optional for both backends)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Prediction export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
