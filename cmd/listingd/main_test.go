package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"listingchain/config"
	coreerrors "listingchain/core/errors"
	"listingchain/indexer"
)

const (
	adminHex  = "0x00000000000000000000000000000000000ad000"
	sellerHex = "0x000000000000000000000000000000000005e11e"
	aliceHex  = "0x00000000000000000000000000000000000a11ce"
	offerHash = "0x00000000000000000000000000000000000000000000000000000000000000a1"
)

type cli struct {
	t      *testing.T
	config string
	dir    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "listingd.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
DataDir = "`+filepath.Join(dir, "data")+`"
Backend = "leveldb"
EventDB = "events.sqlite"

[log]
Level = "error"
`), 0o644))
	genesis := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(genesis, []byte(`
storageOwner: "`+adminHex+`"
balances:
  "`+aliceHex+`": "1000"
`), 0o644))

	c := &cli{t: t, config: cfgPath, dir: dir}
	out, err := c.run("init", "--genesis", genesis)
	require.NoError(t, err)
	require.Contains(t, out, `"registry"`)
	return c
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", c.config}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func (c *cli) decode(out string, v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

type createOutput struct {
	Receipt struct {
		Outcome string `json:"outcome"`
		Result  string `json:"result"`
	} `json:"receipt"`
	Result struct {
		Address        string `json:"address"`
		UnitsAvailable uint64 `json:"unitsAvailable"`
		Escrow         string `json:"escrow"`
	} `json:"result"`
}

func TestInitTwiceFails(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("init", "--genesis", filepath.Join(c.dir, "genesis.yaml"))
	require.ErrorContains(t, err, "already initialized")
}

func TestFixedListingLifecycle(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("create", "--from", sellerHex, "--content", offerHash, "--price", "10", "--units", "5")
	require.NoError(t, err)
	var created createOutput
	c.decode(out, &created)
	require.Equal(t, "success", created.Receipt.Outcome)
	listingHex := created.Result.Address
	require.Equal(t, listingHex, created.Receipt.Result)
	require.Equal(t, uint64(5), created.Result.UnitsAvailable)

	out, err = c.run("trusted", listingHex)
	require.NoError(t, err)
	require.Contains(t, out, `"trusted": true`)

	out, err = c.run("buy", listingHex, "--from", aliceHex, "--value", "30", "--units", "3")
	require.NoError(t, err)
	var bought createOutput
	c.decode(out, &bought)
	require.NotEmpty(t, bought.Result.Escrow)

	_, err = c.run("buy", listingHex, "--from", aliceHex, "--value", "30", "--units", "3")
	require.ErrorIs(t, err, coreerrors.ErrInsufficientInventory)

	out, err = c.run("show", listingHex)
	require.NoError(t, err)
	require.Contains(t, out, `"unitsAvailable": 2`)
	require.Contains(t, out, `"status": "active"`)

	out, err = c.run("show", bought.Result.Escrow)
	require.NoError(t, err)
	require.Contains(t, out, `"heldValue": "30"`)
	require.Contains(t, out, `"status": "open"`)

	_, err = c.run("settle", listingHex, "0", "--from", aliceHex)
	require.NoError(t, err)
	out, err = c.run("balance", sellerHex)
	require.NoError(t, err)
	require.Contains(t, out, `"balance": "30"`)

	out, err = c.run("show", listingHex, "--indexed")
	require.NoError(t, err)
	require.Contains(t, out, `"UnitsAvailable": 2`)

	out, err = c.run("events", "--limit", "100")
	require.NoError(t, err)
	require.Contains(t, out, "registry.listing_created")
	require.Contains(t, out, "listing.purchased")
	require.Contains(t, out, "escrow.settled")
}

func TestVersionedListingWithContentFile(t *testing.T) {
	c := newCLI(t)
	doc := filepath.Join(c.dir, "v0.txt")
	require.NoError(t, os.WriteFile(doc, []byte("week 32, cabin 4"), 0o644))

	out, err := c.run("put-content", doc)
	require.NoError(t, err)
	var stored struct {
		ContentHash string `json:"contentHash"`
	}
	c.decode(out, &stored)

	out, err = c.run("create-fractional", "--from", sellerHex, "--content-file", doc)
	require.NoError(t, err)
	var created createOutput
	c.decode(out, &created)
	listingHex := created.Result.Address

	out, err = c.run("show", listingHex)
	require.NoError(t, err)
	require.Contains(t, out, stored.ContentHash)

	_, err = c.run("update", listingHex, "--from", sellerHex, "--expected", "1", "--content", offerHash)
	require.ErrorIs(t, err, coreerrors.ErrVersionConflict)
	_, err = c.run("update", listingHex, "--from", sellerHex, "--expected", "0", "--content", offerHash)
	require.NoError(t, err)

	out, err = c.run("show", listingHex)
	require.NoError(t, err)
	require.Contains(t, out, `"currentVersion": 1`)
	require.Contains(t, out, strings.ToLower(offerHash))
}

func TestMigrationThroughCLI(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("deploy-registry", "--from", adminHex)
	require.NoError(t, err)
	var deployed createOutput
	c.decode(out, &deployed)
	registry2 := deployed.Receipt.Result

	_, err = c.run("set-active", registry2, "--from", sellerHex)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = c.run("set-active", registry2, "--from", adminHex)
	require.NoError(t, err)

	out, err = c.run("create", "--from", sellerHex, "--content", offerHash, "--price", "1")
	require.NoError(t, err)
	var created createOutput
	c.decode(out, &created)

	out, err = c.run("trusted", created.Result.Address, "--registry", registry2)
	require.NoError(t, err)
	require.Contains(t, out, `"trusted": true`)

	out, err = c.run("show", registry2)
	require.NoError(t, err)
	require.Contains(t, out, `"listings": 1`)
}

func TestCallFlagsValidated(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("create", "--content", offerHash)
	require.ErrorContains(t, err, "--from is required")
	_, err = c.run("create", "--from", sellerHex, "--content", "0x1234")
	require.ErrorContains(t, err, "32-byte")
	_, err = c.run("create", "--from", sellerHex, "--content", offerHash, "--price=-1")
	require.Error(t, err)
}

func TestIndexGapFailsCommand(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("create", "--from", sellerHex, "--content", offerHash, "--price", "10", "--units", "5")
	require.NoError(t, err)

	// Drop the event database so the next call's events no longer follow
	// the last indexed sequence.
	stale, err := filepath.Glob(filepath.Join(c.dir, "data", "events.sqlite*"))
	require.NoError(t, err)
	require.NotEmpty(t, stale)
	for _, path := range stale {
		require.NoError(t, os.Remove(path))
	}

	out, err := c.run("create", "--from", sellerHex, "--content", offerHash, "--price", "10", "--units", "1")
	require.ErrorIs(t, err, indexer.ErrSequenceGap)
	require.ErrorContains(t, err, "event index out of sync")
	var created createOutput
	c.decode(out, &created)
	require.Equal(t, "success", created.Receipt.Outcome)
}

func TestSaveDeploymentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := &app{cfg: &config.Config{DataDir: filepath.Join(dir, "data")}}

	_, err := a.loadDeployment()
	require.ErrorIs(t, err, errNotInitialized)

	want := &deployment{Storage: adminHex, Registry: aliceHex}
	require.NoError(t, a.saveDeployment(want))
	got, err := a.loadDeployment()
	require.NoError(t, err)
	require.Equal(t, want, got)

	// A data dir that is a plain file cannot hold the deployment.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))
	a.cfg.DataDir = blocked
	require.Error(t, a.saveDeployment(want))
}
