package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/bus"
	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
)

// TabOptions holds flags for the tab command.
type TabOptions struct {
	*RootOptions
	TabID string
}

const tabHelp = `commands:
  add id=7 sku=SKU-7 qty=2 color=ff0000 filament=PLA [price=25] [name=Red_PLA]
  update id=7 sku=SKU-7 color=ff0000 filament=PLA qty=3
  remove id=7 color=ff0000 filament=PLA
  clear | show | focus | cartid | help | quit`

// NewTabCommand creates the tab command.
func NewTabCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TabOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tab",
		Short: "Run one interactive cart tab",
		Long: `Run one tab of the cart: read commands from stdin, apply them
optimistically, confirm them remotely and print changes made by other
tabs sharing the same store and bus directory.

` + tabHelp + `

Examples:
  cartsync tab
  cartsync tab --db ./cart.db --base-url http://localhost:8787`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTab(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TabID, "tab-id", "", "fixed tab id (default: generated)")
	return cmd
}

// lockedWriter serializes writes from the command loop and the watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runTab(opts *TabOptions, cmd *cobra.Command) error {
	out := &lockedWriter{w: cmd.OutOrStdout()}
	logger := opts.Logger(cmd.ErrOrStderr())

	mode, err := engine.ParseRollbackMode(opts.Config.Rollback)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid rollback mode", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	gw, err := opts.newGateway(logger)
	if err != nil {
		return err
	}

	spool, err := bus.OpenSpool(opts.Config.BusPath(), bus.DefaultChannel, bus.WithSpoolLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open tab bus", err)
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRollbackMode(mode),
	}
	if opts.TabID != "" {
		engOpts = append(engOpts, engine.WithTabID(opts.TabID))
	}
	eng := engine.New(st, spool, gw, engOpts...)
	defer eng.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: out, ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	f.VerboseLog("tab %s on %s (bus %s)", eng.TabID(), opts.Config.Database, opts.Config.BusPath())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = eng.Watch(ctx, func(c engine.Change) {
			switch c.Cause {
			case engine.CausePeerSync, engine.CauseRollback:
				_ = f.Success(fmt.Sprintf("[%s] %s", c.Cause, summarize(c.Cart)),
					map[string]any{"event": "change", "cause": c.Cause, "cart": c.Cart})
			}
		})
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	t := &tabSession{engine: eng, out: f}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if quit := t.exec(ctx, line); quit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitFailure, "failed to read input", err)
	}
	return nil
}

// tabSession executes REPL commands against one engine.
type tabSession struct {
	engine *engine.Engine
	out    *OutputFormatter
}

// exec runs one command line and reports whether the session should end.
func (t *tabSession) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	var err error
	switch verb {
	case "quit", "exit":
		return true
	case "help":
		_ = t.out.Success(tabHelp, map[string]string{"help": tabHelp})
		return false
	case "show":
		t.report("")
		return false
	case "cartid":
		id := t.engine.CartID()
		text := id
		if id == "" {
			text = "(none)"
		}
		_ = t.out.Success(text, map[string]string{"cart_id": id})
		return false
	case "clear":
		t.engine.ClearCart(ctx)
	case "focus":
		t.engine.Focus(ctx)
	case "add":
		var item cart.Item
		if item, err = parseItem(args, true); err == nil {
			err = t.engine.AddToCart(ctx, item)
		}
	case "update":
		var item cart.Item
		if item, err = parseItem(args, true); err == nil {
			err = t.engine.UpdateQuantity(ctx, item, item.Quantity)
		}
	case "remove":
		var item cart.Item
		if item, err = parseItem(args, false); err == nil {
			t.engine.RemoveFromCart(ctx, item)
		}
	default:
		err = fmt.Errorf("unknown command %q (try help)", verb)
	}

	var inputErr *inputError
	var opErr *engine.OpError
	switch {
	case err == nil:
		t.report(verb)
	case errors.As(err, &inputErr), !errors.As(err, &opErr):
		_ = t.out.Error(ErrCodeBadInput, err.Error(), nil)
	default:
		_ = t.out.Error(ErrCodeOperation, opErr.Error(), map[string]any{
			"code":        opErr.Code,
			"sku":         opErr.SkuNumber,
			"rolled_back": opErr.RolledBack,
		})
	}
	return false
}

// report prints the current cart, prefixed with the verb that produced it.
func (t *tabSession) report(verb string) {
	c := t.engine.Cart()
	view := CartView{CartID: t.engine.CartID(), Items: c, Count: c.Count(), Total: c.Total()}
	text := renderCart(view)
	if verb != "" {
		text = verb + " ok\n" + text
	}
	_ = t.out.Success(text, view)
}

// inputError is an unparseable command line.
type inputError struct {
	msg string
}

func (e *inputError) Error() string {
	return e.msg
}

// parseItem reads key=value arguments into an item. Underscores in name
// stand for spaces.
func parseItem(args []string, needQty bool) (cart.Item, error) {
	var item cart.Item
	haveQty := false
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return cart.Item{}, &inputError{fmt.Sprintf("expected key=value, got %q", arg)}
		}
		var err error
		switch key {
		case "id":
			item.ID, err = strconv.ParseInt(val, 10, 64)
		case "sku":
			item.SkuNumber = val
		case "qty", "quantity":
			item.Quantity, err = strconv.Atoi(val)
			haveQty = true
		case "color":
			item.Color = val
		case "filament":
			item.FilamentType = val
		case "price":
			item.Price, err = strconv.ParseFloat(val, 64)
		case "name":
			item.Name = strings.ReplaceAll(val, "_", " ")
		case "image":
			item.Image = val
		default:
			return cart.Item{}, &inputError{fmt.Sprintf("unknown key %q", key)}
		}
		if err != nil {
			return cart.Item{}, &inputError{fmt.Sprintf("bad %s: %v", key, err)}
		}
	}
	if needQty && !haveQty {
		return cart.Item{}, &inputError{"qty is required"}
	}
	return item, nil
}

func summarize(c cart.Cart) string {
	return fmt.Sprintf("%d lines, %d units, %s", len(c), c.Count(), formatMoney(c.Total()))
}
