package mock

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
)

// Build for fluent initialization of a mock runtime.
type RuntimeBuilder struct {
	rt *Runtime
}

// Initializes a new builder with a receiving actor address.
func NewBuilder(ctx context.Context, receiver addr.Address) *RuntimeBuilder {
	m := &Runtime{
		ctx:      ctx,
		epoch:    0,
		receiver: receiver,
		caller:   addr.Address{},

		state: cid.Undef,
		store: make(map[cid.Cid][]byte),

		idAddresses:   make(map[addr.Address]addr.Address),
		actorCodeCIDs: make(map[addr.Address]cid.Cid),

		t:                        nil, // Initialized at Build()
		expectValidateCallerAny:  false,
		expectValidateCallerAddr: nil,

		expectSends:  make([]*expectedMessage, 0),
		expectEvents: make([]*expectedEvent, 0),
	}
	return &RuntimeBuilder{m}
}

// Builds a new runtime object with the configured values.
func (b *RuntimeBuilder) Build(t testing.TB) *Runtime {
	cpy := *b.rt

	// Deep copy the mutable values.
	cpy.store = make(map[cid.Cid][]byte)
	for k, v := range b.rt.store {
		cpy.store[k] = v
	}
	cpy.idAddresses = make(map[addr.Address]addr.Address)
	for k, v := range b.rt.idAddresses {
		cpy.idAddresses[k] = v
	}
	cpy.actorCodeCIDs = make(map[addr.Address]cid.Cid)
	for k, v := range b.rt.actorCodeCIDs {
		cpy.actorCodeCIDs[k] = v
	}

	cpy.t = t
	return &cpy
}

func (b *RuntimeBuilder) WithEpoch(epoch abi.ChainEpoch) *RuntimeBuilder {
	b.rt.epoch = epoch
	return b
}

func (b *RuntimeBuilder) WithCaller(address addr.Address, code cid.Cid) *RuntimeBuilder {
	b.rt.caller = address
	b.rt.actorCodeCIDs[address] = code
	return b
}

func (b *RuntimeBuilder) WithActorType(address addr.Address, code cid.Cid) *RuntimeBuilder {
	b.rt.actorCodeCIDs[address] = code
	return b
}
