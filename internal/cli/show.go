package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/store"
)

// CartView is the JSON shape of a cart listing.
type CartView struct {
	CartID string    `json:"cart_id,omitempty"`
	Items  cart.Cart `json:"items"`
	Count  int       `json:"count"`
	Total  float64   `json:"total"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var slots bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted cart",
		Long: `Print the cart held in the Local Store with line totals.

A corrupt persisted cart is reported as empty, the same way a tab would
treat it on load.

Examples:
  cartsync show
  cartsync show --format json
  cartsync show --slots`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if slots {
				return runShowSlots(rootOpts, cmd)
			}
			return runShow(rootOpts, cmd)
		},
	}
	cmd.Flags().BoolVar(&slots, "slots", false, "list raw store slots, newest first")
	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	view, err := loadCartView(ctx, st)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(renderCart(view), view)
}

// SlotView is the JSON shape of one raw slot.
type SlotView struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func runShowSlots(opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	slots, err := st.Slots(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list slots", err)
	}

	views := make([]SlotView, 0, len(slots))
	var b strings.Builder
	for _, sl := range slots {
		views = append(views, SlotView{Key: sl.Key, Value: sl.Value, UpdatedAt: sl.UpdatedAt})
		fmt.Fprintf(&b, "%-8s %s  %s\n", sl.Key, sl.UpdatedAt.Format(time.RFC3339), sl.Value)
	}
	if len(slots) == 0 {
		b.WriteString("(no slots)\n")
	}
	return opts.formatter(cmd).Success(strings.TrimSuffix(b.String(), "\n"), views)
}

// loadCartView reads the persisted cart and CartId.
func loadCartView(ctx context.Context, st *store.Store) (CartView, error) {
	c, err := st.Cart(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), store.IsDecodeError(err):
		c = cart.Cart{}
	default:
		return CartView{}, WrapExitError(ExitCommandError, "failed to read cart", err)
	}

	id, err := st.CartID(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return CartView{}, WrapExitError(ExitCommandError, "failed to read cart id", err)
	}
	return CartView{CartID: id, Items: c, Count: c.Count(), Total: c.Total()}, nil
}

var printer = message.NewPrinter(language.AmericanEnglish)

// formatMoney renders an amount in US dollars.
func formatMoney(v float64) string {
	return printer.Sprint(currency.Symbol(currency.USD.Amount(v)))
}

func renderCart(v CartView) string {
	var b strings.Builder
	if v.CartID != "" {
		fmt.Fprintf(&b, "Cart %s\n", v.CartID)
	} else {
		b.WriteString("Cart (not created yet)\n")
	}
	if len(v.Items) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, it := range v.Items {
		name := it.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "  %-10s %-20s %s/%s x%d  %s\n",
			it.SkuNumber, name, it.Color, it.FilamentType, it.Quantity,
			formatMoney(it.Price*float64(it.Quantity)))
	}
	b.WriteString(printer.Sprintf("Items: %d  Total: %s", v.Count, formatMoney(v.Total)))
	return b.String()
}
