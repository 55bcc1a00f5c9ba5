// Package store defines the composite Store interface for all Courier
// persistence.
//
// Each subsystem defines its own store interface next to its types; the
// aggregate Store composes them so a single backend can serve the whole
// engine.
package store

import (
	"context"
	"errors"

	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// ErrClosed is returned by store operations after Close.
var ErrClosed = errors.New("courier: store is closed")

// Store is the aggregate persistence interface.
type Store interface {
	subscription.Store
	webhook.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
