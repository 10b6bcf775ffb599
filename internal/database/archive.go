package database

import (
	"context"
	"errors"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// Consume archives accepted readings and persists every alert change carried by ev
func (db *DB) Consume(ctx context.Context, ev services.Event) error {
	var errs []error
	if ev.Kind == services.EventReading {
		errs = append(errs, db.InsertReading(ctx, ev.Reading.Reading))
	}
	for _, a := range ev.Raised {
		errs = append(errs, db.UpsertAlert(ctx, a))
	}
	for _, a := range ev.Updated {
		errs = append(errs, db.UpsertAlert(ctx, a))
	}
	return errors.Join(errs...)
}
