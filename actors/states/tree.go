package states

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

var ErrActorNotFound = xerrors.New("actor not found")

// Bitwidth of the HAMTs holding actors and address mappings.
const treeBitwidth = builtin.DefaultHamtBitwidth

type Actor struct {
	Code       cid.Cid
	Head       cid.Cid
	CallSeqNum uint64
}

// StateRoot is the serialized form of a Tree.
type StateRoot struct {
	// HAMT[ID address]Actor
	Actors cid.Cid
	// HAMT[key address]ActorID
	Addresses cid.Cid
}

// Tree maps ID addresses to actors, and key addresses to the ID addresses they were assigned.
type Tree struct {
	Map       *adt.Map
	Addresses *adt.Map
	Store     adt.Store
}

// Initializes a new, empty state tree backed by a store.
func NewTree(store adt.Store) (*Tree, error) {
	actors, err := adt.MakeEmptyMap(store, treeBitwidth)
	if err != nil {
		return nil, err
	}
	addresses, err := adt.MakeEmptyMap(store, treeBitwidth)
	if err != nil {
		return nil, err
	}
	return &Tree{
		Map:       actors,
		Addresses: addresses,
		Store:     store,
	}, nil
}

// EmptyObject stores the empty value and returns its CID.
// It is the head of an actor whose state has not yet been constructed.
func EmptyObject(store adt.Store) (cid.Cid, error) {
	return store.Put(store.Context(), adt.Empty)
}

// Loads a tree from a root CID and store.
func LoadTree(store adt.Store, root cid.Cid) (*Tree, error) {
	var sr StateRoot
	if err := store.Get(store.Context(), root, &sr); err != nil {
		return nil, xerrors.Errorf("failed to load state root %v: %w", root, err)
	}
	actors, err := adt.AsMap(store, sr.Actors, treeBitwidth)
	if err != nil {
		return nil, err
	}
	addresses, err := adt.AsMap(store, sr.Addresses, treeBitwidth)
	if err != nil {
		return nil, err
	}
	return &Tree{
		Map:       actors,
		Addresses: addresses,
		Store:     store,
	}, nil
}

// Writes the tree root node to the store, and returns its CID.
func (t *Tree) Flush() (cid.Cid, error) {
	actors, err := t.Map.Root()
	if err != nil {
		return cid.Undef, xerrors.Errorf("failed to flush actors: %w", err)
	}
	addresses, err := t.Addresses.Root()
	if err != nil {
		return cid.Undef, xerrors.Errorf("failed to flush addresses: %w", err)
	}
	return t.Store.Put(t.Store.Context(), &StateRoot{Actors: actors, Addresses: addresses})
}

// Loads the actor at an address of any protocol.
func (t *Tree) GetActor(address addr.Address) (*Actor, bool, error) {
	idAddr, found, err := t.ResolveAddress(address)
	if !found || err != nil {
		return nil, false, err
	}
	var actor Actor
	found, err = t.Map.Get(abi.AddrKey(idAddr), &actor)
	if !found || err != nil {
		return nil, false, err
	}
	return &actor, true, nil
}

// Sets the actor at an ID address.
func (t *Tree) SetActor(idAddr addr.Address, actor *Actor) error {
	if idAddr.Protocol() != addr.ID {
		return xerrors.Errorf("non-ID address %v invalid as actor key", idAddr)
	}
	return t.Map.Put(abi.AddrKey(idAddr), actor)
}

// Records the ID address assigned to a key address.
func (t *Tree) RegisterAddress(keyAddr, idAddr addr.Address) error {
	if idAddr.Protocol() != addr.ID {
		return xerrors.Errorf("cannot map %v to non-ID address %v", keyAddr, idAddr)
	}
	id, err := addr.IDFromAddress(idAddr)
	if err != nil {
		return err
	}
	value := cbg.CborInt(id)
	return t.Addresses.Put(abi.AddrKey(keyAddr), &value)
}

// Resolves an address to its ID form. ID addresses resolve to themselves.
func (t *Tree) ResolveAddress(address addr.Address) (addr.Address, bool, error) {
	if address.Protocol() == addr.ID {
		return address, true, nil
	}
	var id cbg.CborInt
	found, err := t.Addresses.Get(abi.AddrKey(address), &id)
	if !found || err != nil {
		return addr.Undef, false, err
	}
	idAddr, err := addr.NewIDAddress(uint64(id))
	if err != nil {
		return addr.Undef, false, err
	}
	return idAddr, true, nil
}

// Iterates every actor in the tree. The actor passed to fn is reused between calls.
func (t *Tree) ForEach(fn func(address addr.Address, actor *Actor) error) error {
	var val Actor
	return t.Map.ForEach(&val, func(key string) error {
		address, err := addr.NewFromBytes([]byte(key))
		if err != nil {
			return err
		}
		return fn(address, &val)
	})
}

// Loads the state of the actor at an address into out.
func (t *Tree) GetState(address addr.Address, out cbg.CBORUnmarshaler) error {
	actor, found, err := t.GetActor(address)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("%v: %w", address, ErrActorNotFound)
	}
	return t.Store.Get(t.Store.Context(), actor.Head, out)
}
