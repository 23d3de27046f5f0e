package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"listingchain/config"
	"listingchain/content"
	"listingchain/core"
	"listingchain/core/types"
	"listingchain/indexer"
	"listingchain/observability/logging"
	telemetry "listingchain/observability/otel"
	"listingchain/storage"
)

const (
	serviceName    = "listingd"
	deploymentFile = "deployment.toml"
)

var errNotInitialized = errors.New("node not initialized: run `listingd init` first")

// deployment records the storage and registry created by init.
type deployment struct {
	Storage  string `toml:"Storage"`
	Registry string `toml:"Registry"`
}

// app is the per-invocation wiring of config, node, sinks and telemetry.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       storage.Database
	node     *core.Node
	index    *indexer.Store
	content  content.Store
	shutdown telemetry.ShutdownFunc
	out      io.Writer
}

func openApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	node := core.NewNode(db)
	node.SetLogger(logger)
	node.SetListingDuration(cfg.ListingDurationSecs)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		node:     node,
		content:  content.NewDBStore(db),
		shutdown: shutdown,
		out:      cmd.OutOrStdout(),
	}
	if cfg.EventDB != "" {
		dsn := cfg.EventDB
		if !indexer.IsPostgresDSN(dsn) {
			dsn = cfg.ResolvePath(dsn)
		}
		idx, err := indexer.Open(dsn)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		idx.SetLogger(logger)
		node.SetEventSink(idx)
		a.index = idx
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("close event index", slog.Any("error", err))
		}
	}
	a.node.Close()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", slog.Any("error", err))
	}
}

// indexErr reports an event index that fell behind the ledger during this
// invocation.
func (a *app) indexErr() error {
	if a.index == nil {
		return nil
	}
	if err := a.index.Err(); err != nil {
		return fmt.Errorf("event index out of sync: %w", err)
	}
	return nil
}

func (a *app) deploymentPath() string {
	return filepath.Join(a.cfg.DataDir, deploymentFile)
}

func (a *app) loadDeployment() (*deployment, error) {
	var d deployment
	if _, err := toml.DecodeFile(a.deploymentPath(), &d); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNotInitialized
		}
		return nil, fmt.Errorf("read deployment: %w", err)
	}
	return &d, nil
}

func (a *app) saveDeployment(d *deployment) (err error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.deploymentPath(), os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write deployment: %w", cerr)
		}
	}()
	return toml.NewEncoder(f).Encode(d)
}

// registryAddr returns the --registry flag or the deployed registry.
func (a *app) registryAddr(flag string) (common.Address, error) {
	if flag != "" {
		return parseAddress("registry", flag)
	}
	d, err := a.loadDeployment()
	if err != nil {
		return common.Address{}, err
	}
	return parseAddress("registry", d.Registry)
}

// storageAddr returns the --storage flag or the deployed storage.
func (a *app) storageAddr(flag string) (common.Address, error) {
	if flag != "" {
		return parseAddress("storage", flag)
	}
	d, err := a.loadDeployment()
	if err != nil {
		return common.Address{}, err
	}
	return parseAddress("storage", d.Storage)
}

// result is printed for every mutating command.
type result struct {
	Receipt *types.Receipt `json:"receipt"`
	Result  any            `json:"result,omitempty"`
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCall prints the receipt even for rejected calls so the failure reason
// is visible, then returns the call error.
func (a *app) printCall(receipt *types.Receipt, value any, callErr error) error {
	if receipt != nil {
		res := result{Receipt: receipt}
		if callErr == nil {
			res.Result = value
		}
		if err := a.print(res); err != nil {
			return err
		}
	}
	return callErr
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseHash(field, raw string) (common.Hash, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hexutil.Decode("0x" + raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s: expected 32-byte hex hash", field)
	}
	return common.BytesToHash(b), nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
