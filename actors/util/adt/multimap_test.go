package adt_test

import (
	"context"
	"testing"

	abi "github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/ipld"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

func TestMultimap(t *testing.T) {
	alice := abi.AddrKey(tutil.NewIDAddr(t, 101))
	bob := abi.AddrKey(tutil.NewIDAddr(t, 102))

	collect := func(t *testing.T, mm *adt.Multimap, key abi.Keyer) []int64 {
		var out cbg.CborInt
		var values []int64
		err := mm.ForEach(key, &out, func(_ int64) error {
			values = append(values, int64(out))
			return nil
		})
		require.NoError(t, err)
		return values
	}

	t.Run("retains insertion order per key", func(t *testing.T) {
		store := ipld.NewADTStore(context.Background())
		mm, err := adt.MakeEmptyMultimap(store, builtin.DefaultHamtBitwidth, testArrayBitwidth)
		require.NoError(t, err)

		for _, v := range []int64{3, 1, 2} {
			value := cbg.CborInt(v)
			require.NoError(t, mm.Add(alice, &value))
		}
		value := cbg.CborInt(9)
		require.NoError(t, mm.Add(bob, &value))

		assert.Equal(t, []int64{3, 1, 2}, collect(t, mm, alice))
		assert.Equal(t, []int64{9}, collect(t, mm, bob))

		root, err := mm.Root()
		require.NoError(t, err)
		reloaded, err := adt.AsMultimap(store, root, builtin.DefaultHamtBitwidth, testArrayBitwidth)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1, 2}, collect(t, reloaded, alice))
	})

	t.Run("absent key has no values", func(t *testing.T) {
		store := ipld.NewADTStore(context.Background())
		mm, err := adt.MakeEmptyMultimap(store, builtin.DefaultHamtBitwidth, testArrayBitwidth)
		require.NoError(t, err)

		assert.Empty(t, collect(t, mm, alice))
		_, found, err := mm.Get(alice)
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, mm.RemoveAll(alice))
	})

	t.Run("putting an empty array removes the key", func(t *testing.T) {
		store := ipld.NewADTStore(context.Background())
		mm, err := adt.MakeEmptyMultimap(store, builtin.DefaultHamtBitwidth, testArrayBitwidth)
		require.NoError(t, err)

		value := cbg.CborInt(1)
		require.NoError(t, mm.Add(alice, &value))
		require.NoError(t, mm.Add(bob, &value))

		arr, found, err := mm.Get(alice)
		require.NoError(t, err)
		require.True(t, found)
		require.NoError(t, arr.Delete(0))
		require.NoError(t, mm.Put(alice, arr))

		_, found, err = mm.Get(alice)
		require.NoError(t, err)
		assert.False(t, found)

		var keys []string
		err = mm.ForAll(func(k string, arr *adt.Array) error {
			keys = append(keys, k)
			assert.Equal(t, uint64(1), arr.Length())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{bob.Key()}, keys)
	})
}
