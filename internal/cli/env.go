package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/store"
)

// openStore opens the configured Local Store.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local store", err)
	}
	return st, nil
}

// newGateway builds a gateway client from the configuration.
func (o *RootOptions) newGateway(logger *slog.Logger) (*gateway.Client, error) {
	gw, err := gateway.New(o.Config.BaseURL,
		gateway.WithTimeout(o.Config.TimeoutDuration()),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create gateway client", err)
	}
	return gw, nil
}

// resolveCartID returns explicit when set, otherwise the stored CartId.
func resolveCartID(ctx context.Context, st *store.Store, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	id, err := st.CartID(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", NewExitError(ExitFailure, "no cart id: add an item first or pass --cart-id")
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read cart id", err)
	}
	return id, nil
}
