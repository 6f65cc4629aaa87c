package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/fakecommerce"
)

// FakeGatewayOptions holds flags for the fake-gateway command.
type FakeGatewayOptions struct {
	*RootOptions
	Addr            string
	CatalogPath     string
	ShippingBase    float64
	ShippingPerUnit float64
	RequireSession  bool
	Delay           time.Duration

	// ready receives the bound address once listening. Tests only.
	ready chan<- string
}

// catalogEntry is one product in a catalog YAML file.
type catalogEntry struct {
	ItemID        int64   `yaml:"item_id"`
	ProductID     string  `yaml:"product_id"`
	Name          string  `yaml:"name"`
	Price         float64 `yaml:"price"`
	StripePriceID string  `yaml:"stripe_price_id"`
}

// NewFakeGatewayCommand creates the fake-gateway command.
func NewFakeGatewayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FakeGatewayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fake-gateway",
		Short: "Serve an in-memory remote cart API",
		Long: `Serve the remote cart API from memory for local development.

The catalog file maps SKUs to products:

  SKU-7:
    item_id: 7
    name: Red PLA
    price: 25

Examples:
  cartsync fake-gateway --addr :8787
  cartsync fake-gateway --catalog catalog.yaml --require-session`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFakeGateway(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8787", "listen address")
	cmd.Flags().StringVar(&opts.CatalogPath, "catalog", "", "catalog YAML file")
	cmd.Flags().Float64Var(&opts.ShippingBase, "shipping-base", 4.99, "flat shipping cost")
	cmd.Flags().Float64Var(&opts.ShippingPerUnit, "shipping-per-unit", 1.00, "shipping cost per unit")
	cmd.Flags().BoolVar(&opts.RequireSession, "require-session", false, "reject calls without the session cookie")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "delay every response")

	return cmd
}

// loadCatalog reads a catalog YAML file. Unknown keys are an error.
func loadCatalog(path string) (map[string]fakecommerce.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var entries map[string]catalogEntry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make(map[string]fakecommerce.Product, len(entries))
	for sku, e := range entries {
		out[sku] = fakecommerce.Product{
			ItemID:        e.ItemID,
			ProductID:     e.ProductID,
			Name:          e.Name,
			Price:         e.Price,
			StripePriceID: e.StripePriceID,
		}
	}
	return out, nil
}

// buildFakeServer configures the fake API from flags.
func buildFakeServer(opts *FakeGatewayOptions, logger *slog.Logger) (*fakecommerce.Server, error) {
	serverOpts := []fakecommerce.Option{
		fakecommerce.WithLogger(logger),
		fakecommerce.WithShipping(opts.ShippingBase, opts.ShippingPerUnit),
		fakecommerce.WithDelay(opts.Delay),
	}
	if opts.CatalogPath != "" {
		catalog, err := loadCatalog(opts.CatalogPath)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, fakecommerce.WithCatalog(catalog))
	}
	if opts.RequireSession {
		serverOpts = append(serverOpts, fakecommerce.WithRequireSession())
	}
	return fakecommerce.New(serverOpts...), nil
}

func runFakeGateway(opts *FakeGatewayOptions, cmd *cobra.Command) error {
	logger := opts.Logger(cmd.ErrOrStderr())

	fake, err := buildFakeServer(opts, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure fake gateway", err)
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: fake.Router(), ReadHeaderTimeout: 10 * time.Second}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("fake gateway listening", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Fake gateway listening on http://%s\n", addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down fake gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	<-errCh
	return nil
}
