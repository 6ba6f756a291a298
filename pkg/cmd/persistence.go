// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/persistence/memory"
	"github.com/renewos/renewos/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Anything that is not PostgreSQL falls back to the in-memory
// store, which only suits local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		logger.WarnContext(ctx, "no postgres url configured, using in-memory persistence")

		return memory.NewPersistence()
	}
}
