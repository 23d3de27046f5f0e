package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type contentFlags struct {
	hash string
	file string
}

func (f *contentFlags) bind(cmd *cobra.Command, what string) {
	cmd.Flags().StringVar(&f.hash, "content", "", what+" content hash (32-byte hex)")
	cmd.Flags().StringVar(&f.file, "content-file", "", "store this file and use its hash as the "+what+" content")
}

// resolve returns the content hash, storing --content-file first when given.
func (f *contentFlags) resolve(ctx context.Context, a *app) (common.Hash, error) {
	switch {
	case f.hash != "" && f.file != "":
		return common.Hash{}, fmt.Errorf("use either --content or --content-file")
	case f.file != "":
		blob, err := os.ReadFile(f.file)
		if err != nil {
			return common.Hash{}, err
		}
		return a.content.Put(ctx, blob)
	case f.hash != "":
		return parseHash("content", f.hash)
	default:
		return common.Hash{}, fmt.Errorf("--content or --content-file is required")
	}
}

type fixedFlags struct {
	contentFlags
	registry string
	price    string
	units    uint64
}

func (f *fixedFlags) bind(cmd *cobra.Command) {
	f.contentFlags.bind(cmd, "listing")
	cmd.Flags().StringVar(&f.registry, "registry", "", "registry address (defaults to the active deployment)")
	cmd.Flags().StringVar(&f.price, "price", "0", "decimal unit price")
	cmd.Flags().Uint64Var(&f.units, "units", 1, "units offered")
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var flags fixedFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fixed-inventory listing sold by --from",
		Args:  cobra.NoArgs,
	}
	flags.bind(cmd)
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, _ []string) error {
		return createFixed(ctx, a, opts, &flags, "")
	})
	return cmd
}

func newCreateForCmd(opts *globalOptions) *cobra.Command {
	var flags fixedFlags
	cmd := &cobra.Command{
		Use:   "create-for <seller>",
		Short: "Create a fixed-inventory listing on behalf of a seller",
		Args:  cobra.ExactArgs(1),
	}
	flags.bind(cmd)
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		return createFixed(ctx, a, opts, &flags, args[0])
	})
	return cmd
}

func createFixed(ctx context.Context, a *app, opts *globalOptions, flags *fixedFlags, beneficiary string) error {
	call, err := opts.call()
	if err != nil {
		return err
	}
	registryAddr, err := a.registryAddr(flags.registry)
	if err != nil {
		return err
	}
	price, err := parseAmount("price", flags.price)
	if err != nil {
		return err
	}
	hash, err := flags.resolve(ctx, a)
	if err != nil {
		return err
	}
	if beneficiary == "" {
		l, receipt, err := a.node.CreateListing(ctx, call, registryAddr, hash, price, flags.units)
		return a.printCall(receipt, fixedView(l, 0), err)
	}
	seller, err := parseAddress("seller", beneficiary)
	if err != nil {
		return err
	}
	l, receipt, err := a.node.CreateListingOnBehalf(ctx, call, registryAddr, hash, price, flags.units, seller)
	return a.printCall(receipt, fixedView(l, 0), err)
}

func newCreateFractionalCmd(opts *globalOptions) *cobra.Command {
	var (
		content  contentFlags
		registry string
	)
	cmd := &cobra.Command{
		Use:   "create-fractional",
		Short: "Create a versioned listing sold by --from",
		Args:  cobra.NoArgs,
	}
	content.bind(cmd, "initial")
	cmd.Flags().StringVar(&registry, "registry", "", "registry address (defaults to the active deployment)")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, _ []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		registryAddr, err := a.registryAddr(registry)
		if err != nil {
			return err
		}
		hash, err := content.resolve(ctx, a)
		if err != nil {
			return err
		}
		l, receipt, err := a.node.CreateFractional(ctx, call, registryAddr, hash)
		return a.printCall(receipt, versionedView(l, hash), err)
	})
	return cmd
}

func newBuyCmd(opts *globalOptions) *cobra.Command {
	var units uint64
	cmd := &cobra.Command{
		Use:   "buy <listing>",
		Short: "Buy units of a fixed listing; --value is held in escrow",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Uint64Var(&units, "units", 1, "units to buy")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		listingAddr, err := parseAddress("listing", args[0])
		if err != nil {
			return err
		}
		p, receipt, err := a.node.Buy(ctx, call, listingAddr, units)
		return a.printCall(receipt, purchaseView(p), err)
	})
	return cmd
}

func newCloseCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <listing>",
		Short: "Close a fixed listing (seller only)",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		listingAddr, err := parseAddress("listing", args[0])
		if err != nil {
			return err
		}
		receipt, err := a.node.CloseListing(ctx, call, listingAddr)
		return a.printCall(receipt, nil, err)
	})
	return cmd
}

func newRequestCmd(opts *globalOptions) *cobra.Command {
	var content contentFlags
	cmd := &cobra.Command{
		Use:   "request <listing>",
		Short: "Request a versioned listing at its current version; --value is held in escrow",
		Args:  cobra.ExactArgs(1),
	}
	content.bind(cmd, "request")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		listingAddr, err := parseAddress("listing", args[0])
		if err != nil {
			return err
		}
		hash, err := content.resolve(ctx, a)
		if err != nil {
			return err
		}
		p, receipt, err := a.node.Request(ctx, call, listingAddr, hash)
		return a.printCall(receipt, purchaseView(p), err)
	})
	return cmd
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	var (
		content  contentFlags
		expected uint64
	)
	cmd := &cobra.Command{
		Use:   "update <listing>",
		Short: "Publish a new version of a versioned listing (seller only)",
		Args:  cobra.ExactArgs(1),
	}
	content.bind(cmd, "new")
	cmd.Flags().Uint64Var(&expected, "expected", 0, "version the update is based on")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		listingAddr, err := parseAddress("listing", args[0])
		if err != nil {
			return err
		}
		hash, err := content.resolve(ctx, a)
		if err != nil {
			return err
		}
		receipt, err := a.node.Update(ctx, call, listingAddr, expected, hash)
		return a.printCall(receipt, nil, err)
	})
	return cmd
}

func newSettleCmd(opts *globalOptions) *cobra.Command {
	return newFinalizeCmd(opts, "settle", "Release a purchase's escrow to the seller (buyer only)", true)
}

func newRefundCmd(opts *globalOptions) *cobra.Command {
	return newFinalizeCmd(opts, "refund", "Return a purchase's escrow to the buyer (seller only)", false)
}

func newFinalizeCmd(opts *globalOptions, use, short string, settle bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <listing> <index>",
		Short: short,
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		listingAddr, err := parseAddress("listing", args[0])
		if err != nil {
			return err
		}
		index, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		if settle {
			receipt, err := a.node.SettlePurchase(ctx, call, listingAddr, index)
			return a.printCall(receipt, nil, err)
		}
		receipt, err := a.node.RefundPurchase(ctx, call, listingAddr, index)
		return a.printCall(receipt, nil, err)
	})
	return cmd
}
