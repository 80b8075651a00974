package adt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/support/ipld"
)

const testArrayBitwidth = 3

func TestArrayNotFound(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	arr, err := adt.MakeEmptyArray(store, testArrayBitwidth)
	require.NoError(t, err)

	found, err := arr.Get(7, nil)
	require.NoError(t, err)
	require.False(t, found)
}

func TestArrayAppendAndDelete(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	arr, err := adt.MakeEmptyArray(store, testArrayBitwidth)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		v := cbg.CborInt(i * 10)
		require.NoError(t, arr.AppendContinuous(&v))
	}
	assert.Equal(t, uint64(20), arr.Length())

	var out cbg.CborInt
	found, err := arr.Get(13, &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cbg.CborInt(130), out)

	require.NoError(t, arr.Delete(19))
	assert.Equal(t, uint64(19), arr.Length())
	require.Error(t, arr.Delete(19))

	deleted, err := arr.TryDelete(19)
	require.NoError(t, err)
	assert.False(t, deleted)

	// The array survives a round trip through its root.
	root, err := arr.Root()
	require.NoError(t, err)
	reloaded, err := adt.AsArray(store, root, testArrayBitwidth)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), reloaded.Length())

	var seen []int64
	err = reloaded.ForEach(&out, func(i int64) error {
		assert.Equal(t, cbg.CborInt(i*10), out)
		seen = append(seen, i)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 19)
}
