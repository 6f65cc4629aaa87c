package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/gateway"
)

// RemoteOptions holds flags shared by the remote subcommands.
type RemoteOptions struct {
	*RootOptions
	CartID string
}

// NewRemoteCommand creates the remote command group: checkout-side calls
// that are not part of tab synchronization.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect and edit the server-side cart",
		Long: `Talk to the remote cart API directly.

The cart id defaults to the one in the Local Store.

Examples:
  cartsync remote show
  cartsync remote shipping --cart-id cart-1
  cartsync remote remove 7`,
	}
	cmd.PersistentFlags().StringVar(&opts.CartID, "cart-id", "", "remote cart id (default: stored id)")

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Fetch the server-side cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(opts, cmd, func(ctx context.Context, gw *gateway.Client, id string, f *OutputFormatter) error {
				rc, err := gw.FetchCart(ctx, id)
				if err != nil {
					return remoteError(f, "fetch cart", err)
				}
				return f.Success(renderRemoteCart(id, rc), rc)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "remove <item-id>",
		Short:         "Remove a server-side line",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "item id must be an integer", err)
			}
			return runRemote(opts, cmd, func(ctx context.Context, gw *gateway.Client, id string, f *OutputFormatter) error {
				if err := gw.RemoveItem(ctx, gateway.RemoveItemRequest{CartID: id, ItemID: itemID}); err != nil {
					return remoteError(f, "remove item", err)
				}
				return f.Success(fmt.Sprintf("removed item %d from %s", itemID, id),
					map[string]any{"cart_id": id, "item_id": itemID})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "shipping",
		Short:         "Estimate shipping for the server-side cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(opts, cmd, func(ctx context.Context, gw *gateway.Client, id string, f *OutputFormatter) error {
				cost, err := gw.EstimateShipping(ctx, id)
				if err != nil {
					return remoteError(f, "estimate shipping", err)
				}
				return f.Success(fmt.Sprintf("Shipping: %s", formatMoney(cost)),
					map[string]any{"cart_id": id, "shipping_cost": cost})
			})
		},
	})

	return cmd
}

type remoteFunc func(ctx context.Context, gw *gateway.Client, cartID string, f *OutputFormatter) error

func runRemote(opts *RemoteOptions, cmd *cobra.Command, fn remoteFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id := opts.CartID
	if id == "" {
		st, err := opts.openStore()
		if err != nil {
			return err
		}
		id, err = resolveCartID(ctx, st, "")
		st.Close()
		if err != nil {
			return err
		}
	}

	gw, err := opts.newGateway(opts.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	return fn(ctx, gw, id, opts.formatter(cmd))
}

// remoteError reports a gateway failure and returns the matching exit error.
func remoteError(f *OutputFormatter, what string, err error) error {
	_ = f.Error(ErrCodeRemote, err.Error(), map[string]int{"status": gateway.StatusCode(err)})
	return WrapExitError(ExitFailure, what+" failed", err)
}

func renderRemoteCart(id string, rc *gateway.RemoteCart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remote cart %s\n", id)
	if len(rc.Items) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, it := range rc.Items {
		fmt.Fprintf(&b, "  #%-4d %-10s %-20s %s/%s x%d  %s\n",
			it.ID, it.SkuNumber, it.Name, it.Color, it.FilamentType, it.Quantity,
			formatMoney(it.Price*float64(it.Quantity)))
	}
	fmt.Fprintf(&b, "Total: %s", formatMoney(rc.Total))
	return b.String()
}
