package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"listingchain/core/types"
)

var version = "dev"

type globalOptions struct {
	configPath string
	from       string
	value      string
}

// call builds the types.Call described by --from and --value.
func (o *globalOptions) call() (types.Call, error) {
	if o.from == "" {
		return types.Call{}, fmt.Errorf("--from is required")
	}
	caller, err := parseAddress("from", o.from)
	if err != nil {
		return types.Call{}, err
	}
	if caller == (common.Address{}) {
		return types.Call{}, fmt.Errorf("--from must not be the zero address")
	}
	value, err := parseAmount("value", o.value)
	if err != nil {
		return types.Call{}, err
	}
	return types.NewCall(caller).WithValue(value), nil
}

type runFunc func(ctx context.Context, a *app, args []string) error

// withApp opens the node for the duration of one command.
func withApp(opts *globalOptions, run runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, cmd, opts)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		return errors.Join(run(ctx, a, args), a.indexErr())
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "listingd",
		Short:         "Operate a local listing marketplace ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "listingd.toml", "config file path (created with defaults when missing)")
	flags.StringVar(&opts.from, "from", "", "caller address for state-changing commands")
	flags.StringVar(&opts.value, "value", "", "decimal value attached to the call")

	root.AddCommand(
		newInitCmd(opts),
		newDeployRegistryCmd(opts),
		newSetActiveCmd(opts),
		newSetOwnerCmd(opts),
		newCreateCmd(opts),
		newCreateForCmd(opts),
		newCreateFractionalCmd(opts),
		newBuyCmd(opts),
		newCloseCmd(opts),
		newRequestCmd(opts),
		newUpdateCmd(opts),
		newSettleCmd(opts),
		newRefundCmd(opts),
		newTrustedCmd(opts),
		newShowCmd(opts),
		newBalanceCmd(opts),
		newPutContentCmd(opts),
		newEventsCmd(opts),
	)
	return root
}
