package listing

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	coreerrors "listingchain/core/errors"
)

func TestProperty_InventoryNeverOversold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		initial := rapid.Uint64Range(1, 50).Draw(rt, "initial")
		buys := rapid.SliceOfN(rapid.Uint64Range(1, 20), 0, 30).Draw(rt, "buys")
		l := f.createFixed(rt, initial)

		var accepted uint64
		for _, units := range buys {
			_, err := f.engine.Buy(buyerAddr, l.Address, units, nil)
			if err == nil {
				accepted += units
				continue
			}
			require.ErrorIs(rt, err, coreerrors.ErrInsufficientInventory)
		}

		stored, err := f.engine.Fixed(l.Address)
		require.NoError(rt, err)
		require.LessOrEqual(rt, accepted, initial)
		require.Equal(rt, initial-accepted, stored.UnitsAvailable)
	})
}

func TestProperty_CloseOnlyBySeller(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		initial := rapid.Uint64Range(1, 50).Draw(rt, "initial")
		bySeller := rapid.Bool().Draw(rt, "bySeller")
		l := f.createFixed(rt, initial)

		caller := otherAddr
		if bySeller {
			caller = sellerAddr
		}
		_, err := f.engine.Close(caller, l.Address)
		stored, loadErr := f.engine.Fixed(l.Address)
		require.NoError(rt, loadErr)
		if bySeller {
			require.NoError(rt, err)
			require.Zero(rt, stored.UnitsAvailable)
			return
		}
		require.ErrorIs(rt, err, coreerrors.ErrUnauthorized)
		require.Equal(rt, initial, stored.UnitsAvailable)
	})
}

func TestProperty_ExpiredBuyAlwaysFails(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		l := f.createFixed(rt, 10)
		f.now = l.Expiration + rapid.Uint64Range(0, 1_000_000).Draw(rt, "late")
		units := rapid.Uint64Range(1, 20).Draw(rt, "units")

		_, err := f.engine.Buy(buyerAddr, l.Address, units, nil)
		require.ErrorIs(rt, err, coreerrors.ErrExpired)
		stored, loadErr := f.engine.Fixed(l.Address)
		require.NoError(rt, loadErr)
		require.Equal(rt, uint64(10), stored.UnitsAvailable)
	})
}

func TestProperty_UpdateSucceedsOnlyAtCurrentVersion(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(rt)
		l := f.createVersioned(rt)
		attempts := rapid.SliceOfN(rapid.Uint64Range(0, 5), 1, 20).Draw(rt, "expected")

		for i, expected := range attempts {
			before, err := f.engine.CurrentVersion(l.Address)
			require.NoError(rt, err)
			var content common.Hash
			content[31] = byte(i + 1)

			_, err = f.engine.Update(sellerAddr, l.Address, expected, content)
			after, currentErr := f.engine.CurrentVersion(l.Address)
			require.NoError(rt, currentErr)
			if expected == before {
				require.NoError(rt, err)
				require.Equal(rt, before+1, after)
				v, dataErr := f.engine.Data(l.Address, after)
				require.NoError(rt, dataErr)
				require.Equal(rt, content, v.ContentHash)
				continue
			}
			require.True(rt, errors.Is(err, coreerrors.ErrVersionConflict), "got %v", err)
			require.Equal(rt, before, after)
		}
	})
}
