package adt

import (
	abi "github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	errors "github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"

	runtime "github.com/filecoin-project/vesting-actors/actors/runtime"
)

// Multimap stores multiple values per key in a HAMT of AMTs.
// The order of insertion of values for each key is retained.
// A key with no values is absent from the HAMT.
type Multimap struct {
	mp            *Map
	innerBitwidth int
}

// Interprets a store as a HAMT-based map of AMTs with root `r`.
// The outer map is interpreted with a branching factor of 2^outerBitwidth,
// and each inner array with a branching factor of 2^innerBitwidth.
func AsMultimap(s Store, r cid.Cid, outerBitwidth, innerBitwidth int) (*Multimap, error) {
	m, err := AsMap(s, r, outerBitwidth)
	if err != nil {
		return nil, err
	}
	return &Multimap{m, innerBitwidth}, nil
}

// Creates a new map backed by an empty HAMT.
func MakeEmptyMultimap(s Store, outerBitwidth, innerBitwidth int) (*Multimap, error) {
	m, err := MakeEmptyMap(s, outerBitwidth)
	if err != nil {
		return nil, err
	}
	return &Multimap{m, innerBitwidth}, nil
}

// Writes a new empty multimap to the store, returning its CID.
func StoreEmptyMultimap(s Store, outerBitwidth, innerBitwidth int) (cid.Cid, error) {
	mmap, err := MakeEmptyMultimap(s, outerBitwidth, innerBitwidth)
	if err != nil {
		return cid.Undef, err
	}
	return mmap.Root()
}

// Returns the root cid of the underlying HAMT.
func (mm *Multimap) Root() (cid.Cid, error) {
	return mm.mp.Root()
}

// Adds a value for a key.
func (mm *Multimap) Add(key abi.Keyer, value runtime.CBORMarshaler) error {
	// Load the array under key, or initialize a new empty one if not found.
	array, found, err := mm.Get(key)
	if err != nil {
		return err
	}
	if !found {
		array, err = MakeEmptyArray(mm.mp.store, mm.innerBitwidth)
		if err != nil {
			return errors.Wrapf(err, "failed to initialize multimap array value for key %v", key)
		}
	}

	// Append to the array.
	if err = array.AppendContinuous(value); err != nil {
		return errors.Wrapf(err, "failed to add multimap key %v value %v", key, value)
	}

	return mm.Put(key, array)
}

// Stores the array under key, replacing any previous values.
// An empty array removes the key.
func (mm *Multimap) Put(key abi.Keyer, array *Array) error {
	if array.Length() == 0 {
		return mm.RemoveAll(key)
	}
	c, err := array.Root()
	if err != nil {
		return errors.Wrapf(err, "failed to flush multimap array for key %v", key)
	}
	newArrayRoot := cbg.CborCid(c)
	if err = mm.mp.Put(key, &newArrayRoot); err != nil {
		return errors.Wrapf(err, "failed to store multimap values for key %v", key)
	}
	return nil
}

// Removes all values for a key. Removing an absent key is not an error.
func (mm *Multimap) RemoveAll(key abi.Keyer) error {
	if _, err := mm.mp.TryDelete(key); err != nil {
		return errors.Wrapf(err, "failed to delete multimap key %v", key)
	}
	return nil
}

// Iterates all entries for a key in the order they were inserted, deserializing each value in turn into `out` and then
// calling a function.
// Iteration halts if the function returns an error.
// If the output parameter is nil, deserialization is skipped.
func (mm *Multimap) ForEach(key abi.Keyer, out runtime.CBORUnmarshaler, fn func(i int64) error) error {
	array, found, err := mm.Get(key)
	if err != nil {
		return err
	}
	if found {
		return array.ForEach(out, fn)
	}
	return nil
}

// Iterates every key, presenting the array of values stored under it.
func (mm *Multimap) ForAll(fn func(k string, arr *Array) error) error {
	var arrRoot cbg.CborCid
	return mm.mp.ForEach(&arrRoot, func(k string) error {
		arr, err := AsArray(mm.mp.store, cid.Cid(arrRoot), mm.innerBitwidth)
		if err != nil {
			return err
		}
		return fn(k, arr)
	})
}

// Loads the array of values stored under a key.
func (mm *Multimap) Get(key abi.Keyer) (*Array, bool, error) {
	var arrayRoot cbg.CborCid
	found, err := mm.mp.Get(key, &arrayRoot)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load multimap key %v", key)
	}
	var array *Array
	if found {
		array, err = AsArray(mm.mp.store, cid.Cid(arrayRoot), mm.innerBitwidth)
		if err != nil {
			return nil, false, errors.Wrapf(err, "failed to load multimap array for key %v", key)
		}
	}
	return array, found, nil
}
