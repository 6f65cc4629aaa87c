package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/fakecommerce"
	"github.com/roach88/cartsync/internal/gateway"
)

const testCatalog = `SKU-7:
  item_id: 7
  product_id: prod-7
  name: Red PLA
  price: 25
  stripe_price_id: price_7
SKU-8:
  name: Grey PETG
  price: 30
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := loadCatalog(writeCatalog(t, testCatalog))
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	assert.Equal(t, fakecommerce.Product{
		ItemID: 7, ProductID: "prod-7", Name: "Red PLA", Price: 25, StripePriceID: "price_7",
	}, catalog["SKU-7"])
	assert.Zero(t, catalog["SKU-8"].ItemID)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read catalog")

	_, err = loadCatalog(writeCatalog(t, "SKU-1:\n  colour: red\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse catalog")
}

func TestBuildFakeServer_BadCatalog(t *testing.T) {
	opts := &FakeGatewayOptions{RootOptions: testOptions(t, "text", ""), CatalogPath: "/nonexistent.yaml"}
	_, err := buildFakeServer(opts, opts.Logger(io.Discard))
	require.Error(t, err)
}

func TestRunFakeGateway(t *testing.T) {
	ready := make(chan string, 1)
	opts := &FakeGatewayOptions{
		RootOptions:     testOptions(t, "text", ""),
		Addr:            "127.0.0.1:0",
		CatalogPath:     writeCatalog(t, testCatalog),
		ShippingBase:    4.99,
		ShippingPerUnit: 1,
		ready:           ready,
	}
	cmd := NewFakeGatewayCommand(opts.RootOptions)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runFakeGateway(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	gw, err := gateway.New("http://"+addr, gateway.WithTimeout(2*time.Second))
	require.NoError(t, err)
	id, err := gw.CreateCart(ctx)
	require.NoError(t, err)
	require.NoError(t, gw.AddItem(ctx, gateway.AddItemRequest{CartID: id, SkuNumber: "SKU-7", Quantity: 1, Color: "ff0000", FilamentType: "PLA"}))

	rc, err := gw.FetchCart(ctx, id)
	require.NoError(t, err)
	require.Len(t, rc.Items, 1)
	assert.Equal(t, int64(7), rc.Items[0].ID)
	assert.Equal(t, "Red PLA", rc.Items[0].Name)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, out.String(), "Fake gateway listening on http://"+addr)
}
