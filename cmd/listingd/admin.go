package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"listingchain/config"
	coreerrors "listingchain/core/errors"
	"listingchain/core/types"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var genesisPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Apply genesis: fund accounts, deploy storage and registry, activate the registry",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&genesisPath, "genesis", "", "genesis YAML (defaults to GenesisFile from the config)")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.loadDeployment(); err == nil {
			return fmt.Errorf("already initialized: %s exists", a.deploymentPath())
		} else if !errors.Is(err, errNotInitialized) {
			return err
		}
		if genesisPath == "" {
			genesisPath = a.cfg.GenesisFile
		}
		if genesisPath == "" {
			return fmt.Errorf("no genesis file: pass --genesis or set GenesisFile")
		}
		plan, err := config.LoadGenesis(genesisPath)
		if err != nil {
			return err
		}

		var receipts []*types.Receipt
		for _, alloc := range plan.Allocations {
			receipt, err := a.node.Fund(ctx, alloc.Address, alloc.Amount)
			if err != nil {
				return fmt.Errorf("fund %s: %w", alloc.Address.Hex(), err)
			}
			receipts = append(receipts, receipt)
		}
		st, receipt, err := a.node.DeployStorage(ctx, types.NewCall(plan.StorageOwner))
		if err != nil {
			return fmt.Errorf("deploy storage: %w", err)
		}
		receipts = append(receipts, receipt)
		reg, receipt, err := a.node.DeployRegistry(ctx, types.NewCall(plan.RegistryOwner), st.Address)
		if err != nil {
			return fmt.Errorf("deploy registry: %w", err)
		}
		receipts = append(receipts, receipt)
		receipt, err = a.node.SetActiveRegistry(ctx, types.NewCall(plan.StorageOwner), st.Address, reg.Address)
		if err != nil {
			return fmt.Errorf("activate registry: %w", err)
		}
		receipts = append(receipts, receipt)

		d := &deployment{Storage: st.Address.Hex(), Registry: reg.Address.Hex()}
		if err := a.saveDeployment(d); err != nil {
			return err
		}
		a.logger.Info("genesis applied", "storage", d.Storage, "registry", d.Registry, "allocations", len(plan.Allocations))
		return a.print(struct {
			Storage  string           `json:"storage"`
			Registry string           `json:"registry"`
			Receipts []*types.Receipt `json:"receipts"`
		}{d.Storage, d.Registry, receipts})
	})
	return cmd
}

func newDeployRegistryCmd(opts *globalOptions) *cobra.Command {
	var storageFlag string
	cmd := &cobra.Command{
		Use:   "deploy-registry",
		Short: "Deploy a new registry bound to the storage",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&storageFlag, "storage", "", "storage address (defaults to the deployed storage)")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, _ []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		storageAddr, err := a.storageAddr(storageFlag)
		if err != nil {
			return err
		}
		reg, receipt, err := a.node.DeployRegistry(ctx, call, storageAddr)
		return a.printCall(receipt, registryView(reg, 0), err)
	})
	return cmd
}

func newSetActiveCmd(opts *globalOptions) *cobra.Command {
	var storageFlag string
	cmd := &cobra.Command{
		Use:   "set-active <registry>",
		Short: "Point the storage at a new active registry",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&storageFlag, "storage", "", "storage address (defaults to the deployed storage)")
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		storageAddr, err := a.storageAddr(storageFlag)
		if err != nil {
			return err
		}
		registryAddr, err := parseAddress("registry", args[0])
		if err != nil {
			return err
		}
		receipt, err := a.node.SetActiveRegistry(ctx, call, storageAddr, registryAddr)
		if err != nil {
			return a.printCall(receipt, nil, err)
		}
		d, derr := a.loadDeployment()
		if derr == nil && d.Storage == storageAddr.Hex() {
			d.Registry = registryAddr.Hex()
			if err := a.saveDeployment(d); err != nil {
				return err
			}
		}
		return a.printCall(receipt, nil, nil)
	})
	return cmd
}

func newSetOwnerCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-owner <storage-or-registry> <new-owner>",
		Short: "Transfer ownership of a storage or a registry",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = withApp(opts, func(ctx context.Context, a *app, args []string) error {
		call, err := opts.call()
		if err != nil {
			return err
		}
		target, err := parseAddress("target", args[0])
		if err != nil {
			return err
		}
		newOwner, err := parseAddress("new-owner", args[1])
		if err != nil {
			return err
		}
		_, err = a.node.Storage(ctx, target)
		switch {
		case err == nil:
			receipt, err := a.node.SetStorageOwner(ctx, call, target, newOwner)
			return a.printCall(receipt, nil, err)
		case errors.Is(err, coreerrors.ErrNotFound):
			receipt, err := a.node.SetRegistryOwner(ctx, call, target, newOwner)
			return a.printCall(receipt, nil, err)
		default:
			return err
		}
	})
	return cmd
}
