package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	coreerrors "listingchain/core/errors"
	"listingchain/native/listing"
)

func newTrustedCmd(opts *globalOptions) *cobra.Command {
	var registry string
	cmd := &cobra.Command{
		Use:   "trusted <address>",
		Short: "Report whether an address was created through the registry's storage",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&registry, "registry", "", "registry address (defaults to the active deployment)")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		registryAddr, err := a.registryAddr(registry)
		if err != nil {
			return err
		}
		addr, err := parseAddress("address", args[0])
		if err != nil {
			return err
		}
		trusted, err := a.node.IsTrusted(ctx, registryAddr, addr)
		if err != nil {
			return err
		}
		return a.print(map[string]any{"registry": registryAddr.Hex(), "address": addr.Hex(), "trusted": trusted})
	})
	return cmd
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var indexed bool
	cmd := &cobra.Command{
		Use:   "show <address>",
		Short: "Show a listing, escrow, registry or storage record",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&indexed, "indexed", false, "show the listing as projected by the event index")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		addr, err := parseAddress("address", args[0])
		if err != nil {
			return err
		}
		if indexed {
			if a.index == nil {
				return fmt.Errorf("no event index: set EventDB in the config")
			}
			rec, err := a.index.Listing(ctx, addr)
			if err != nil {
				return err
			}
			return a.print(rec)
		}

		kind, err := a.node.ListingKind(ctx, addr)
		switch {
		case err == nil && kind == listing.KindFixed:
			l, err := a.node.FixedListing(ctx, addr)
			if err != nil {
				return err
			}
			status, err := a.node.FixedListingStatus(ctx, addr)
			if err != nil {
				return err
			}
			return a.print(fixedView(l, status))
		case err == nil:
			l, err := a.node.VersionedListing(ctx, addr)
			if err != nil {
				return err
			}
			hash, err := a.node.ContentHash(ctx, addr)
			if err != nil {
				return err
			}
			return a.print(versionedView(l, hash))
		case !errors.Is(err, coreerrors.ErrNotFound):
			return err
		}

		if esc, err := a.node.Escrow(ctx, addr); err == nil {
			return a.print(escrowView(esc))
		} else if !errors.Is(err, coreerrors.ErrNotFound) {
			return err
		}
		if reg, err := a.node.Registry(ctx, addr); err == nil {
			n, err := a.node.ListingsLength(ctx, addr)
			if err != nil {
				return err
			}
			return a.print(registryView(reg, n))
		} else if !errors.Is(err, coreerrors.ErrNotFound) {
			return err
		}
		st, err := a.node.Storage(ctx, addr)
		if err != nil {
			return err
		}
		return a.print(storageView(st))
	})
	return cmd
}

func newBalanceCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		addr, err := parseAddress("address", args[0])
		if err != nil {
			return err
		}
		bal, err := a.node.Balance(ctx, addr)
		if err != nil {
			return err
		}
		return a.print(map[string]string{"address": addr.Hex(), "balance": amount(bal)})
	})
	return cmd
}

func newPutContentCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put-content <file>",
		Short: "Store a file in the content store and print its hash",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		hash, err := a.content.Put(ctx, blob)
		if err != nil {
			return err
		}
		return a.print(map[string]any{"contentHash": hash.Hex(), "size": len(blob)})
	})
	return cmd
}

func newEventsCmd(opts *globalOptions) *cobra.Command {
	var (
		after uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List indexed events (requires EventDB in the config)",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Uint64Var(&after, "after", 0, "only events with a greater sequence")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events to return")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, _ []string) error {
		if a.index == nil {
			return fmt.Errorf("no event index: set EventDB in the config")
		}
		evts, err := a.index.Events(ctx, after, limit)
		if err != nil {
			return err
		}
		return a.print(evts)
	})
	return cmd
}
