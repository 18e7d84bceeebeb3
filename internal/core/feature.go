package core

import (
	"context"
	"net/http"
)

// Feature is a self-contained part of the service: it owns its storage,
// background jobs and HTTP routes.
type Feature interface {
	Name() string
	Description() string
	Enabled() bool

	// Init prepares storage and starts background work
	Init(ctx context.Context) error

	Routes() []Route

	// Shutdown stops background work and waits for in-flight jobs
	Shutdown(ctx context.Context) error
}

// Route represents an HTTP route for a feature
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// BaseFeature provides common functionality for all features
type BaseFeature struct {
	name        string
	description string
	enabled     bool
	logger      *Logger
	db          *Database
}

// NewBaseFeature creates a new base feature
func NewBaseFeature(name, description string, enabled bool, logger *Logger, db *Database) *BaseFeature {
	return &BaseFeature{
		name:        name,
		description: description,
		enabled:     enabled,
		logger:      logger.ForFeature(name),
		db:          db,
	}
}

func (f *BaseFeature) Name() string        { return f.name }
func (f *BaseFeature) Description() string { return f.description }
func (f *BaseFeature) Enabled() bool       { return f.enabled }

// Logger returns the feature-specific logger
func (f *BaseFeature) Logger() *Logger { return f.logger }

// DB returns the database connection
func (f *BaseFeature) DB() *Database { return f.db }

func (f *BaseFeature) Init(ctx context.Context) error {
	f.logger.Info("Initializing feature")
	return nil
}

func (f *BaseFeature) Routes() []Route { return nil }

func (f *BaseFeature) Shutdown(ctx context.Context) error {
	f.logger.Info("Shutting down feature")
	return nil
}
