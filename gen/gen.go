package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/states"
)

func main() {
	if err := gen.WriteTupleEncodersToFile("./actors/states/cbor_gen.go", "states",
		states.Actor{},
		states.StateRoot{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/account/cbor_gen.go", "account",
		// actor state
		account.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/token/cbor_gen.go", "token",
		// actor state
		token.State{},
		// method params
		token.ConstructorParams{},
		token.TransferParams{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesting/cbor_gen.go", "vesting",
		// actor state
		vesting.State{},
		vesting.Grant{},
		// method params and returns
		vesting.ConstructorParams{},
		vesting.GrantParams{},
		vesting.VestedTokensParams{},
		vesting.VestedTokensReturn{},
		vesting.GrantsReturn{},
		// events
		vesting.GrantEvent{},
		vesting.RevokeEvent{},
		vesting.UnlockEvent{},
		vesting.AdminEvent{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/puppet/cbor_gen.go", "puppet",
		// actor state
		puppet.State{},
		// method params and returns
		puppet.SendParams{},
		puppet.SendReturn{},
	); err != nil {
		panic(err)
	}
}
