package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/contactgraph/internal/config"
	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/pgstore"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/store"
)

// backend is what the commands need from a contact store.
// Implemented by store.Store and pgstore.Store.
type backend interface {
	contact.Transactor
	Ping(ctx context.Context) error
	ReadAll(ctx context.Context) ([]contact.Contact, error)
	Close() error
}

// openStore opens the store selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		logger.Debug().Str("path", cfg.Path).Msg("opening sqlite store")
		st, err := store.Open(cfg.Path, store.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	case config.DriverPostgres:
		logger.Debug().Msg("opening postgres store")
		st, err := pgstore.Open(ctx, cfg.DSN, pgstore.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown store driver %q", cfg.Driver))
	}
}

// closeStore closes st, logging rather than returning the error.
func closeStore(st backend, logger zerolog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing store")
	}
}

// engineError reports a reconcile error through f and converts it to an
// ExitError. Invalid input is a command error; everything else is a failure.
func engineError(f *OutputFormatter, err error) error {
	var rerr *reconcile.Error
	if !errors.As(err, &rerr) {
		return WrapExitError(ExitFailure, "command failed", err)
	}

	message := strings.ToLower(strings.ReplaceAll(string(rerr.Code), "_", " "))
	if rerr.Code == reconcile.CodeInvalidObservation || rerr.Code == reconcile.CodeNotFound {
		message = rerr.Message
	}
	if outErr := f.Error(string(rerr.Code), message, nil); outErr != nil {
		return outErr
	}

	code := ExitFailure
	if rerr.Code == reconcile.CodeInvalidObservation {
		code = ExitCommandError
	}
	return WrapExitError(code, string(rerr.Code), err)
}

// summaryView renders an identity for text output. Its JSON form is the
// {"contact": {...}} envelope.
type summaryView contact.Envelope

// WriteText implements textWriter.
func (v summaryView) WriteText(w io.Writer) {
	s := v.Contact
	fmt.Fprintf(w, "Primary contact: %d\n", s.PrimaryContactID)
	fmt.Fprintf(w, "Emails:          %s\n", joinOrDash(s.Emails))
	fmt.Fprintf(w, "Phone numbers:   %s\n", joinOrDash(s.PhoneNumbers))

	ids := make([]string, len(s.SecondaryContactIDs))
	for i, id := range s.SecondaryContactIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(w, "Secondary ids:   %s\n", joinOrDash(ids))
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
