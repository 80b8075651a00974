package vm

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/exported"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/puppet"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/support/ipld"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

// Creates a new VM, backed by an in-memory store, that runs every built-in actor plus the puppet.
func NewTestVM(ctx context.Context, t testing.TB) *VM {
	actors := append(exported.BuiltinActors(), puppet.Actor{})
	vm, err := NewVM(ctx, actors, ipld.NewADTStore(ctx))
	require.NoError(t, err)
	return vm
}

// Creates n account actors with distinct BLS keys. Returns their key addresses, which the VM resolves.
func CreateAccounts(t testing.TB, vm *VM, n int, seed int64) []addr.Address {
	pubAddrs := make([]addr.Address, n)
	for i := range pubAddrs {
		pubkey := tutil.NewBLSAddr(t, seed+int64(i))
		idAddr, ret, err := vm.CreateActor(builtin.SystemActorAddr, builtin.AccountActorCodeID, &pubkey)
		require.NoError(t, err)
		require.Equal(t, exitcode.Ok, ret.Code, "failed to construct account %v", pubkey)
		require.NoError(t, vm.RegisterAddress(pubkey, idAddr))
		pubAddrs[i] = pubkey
	}
	return pubAddrs
}

// Creates a puppet actor, returning its ID address.
func CreatePuppet(t testing.TB, vm *VM) addr.Address {
	idAddr, ret, err := vm.CreateActor(builtin.SystemActorAddr, puppet.PuppetActorCodeID, nil)
	require.NoError(t, err)
	require.Equal(t, exitcode.Ok, ret.Code)
	return idAddr
}

// Creates a token actor crediting its entire supply to the issuer, returning the token's ID address.
func CreateToken(t testing.TB, vm *VM, issuer addr.Address, supply abi.TokenAmount) addr.Address {
	idAddr, ret, err := vm.CreateActor(builtin.InitActorAddr, builtin.TokenActorCodeID, &token.ConstructorParams{
		Issuer: issuer,
		Supply: supply,
	})
	require.NoError(t, err)
	require.Equal(t, exitcode.Ok, ret.Code)
	return idAddr
}

// Creates a vesting actor administered by admin over a token, returning the vesting actor's ID address.
func CreateVesting(t testing.TB, vm *VM, admin, tokenAddr addr.Address) addr.Address {
	idAddr, ret, err := vm.CreateActor(builtin.InitActorAddr, builtin.VestingActorCodeID, &vesting.ConstructorParams{
		Admin: admin,
		Token: tokenAddr,
	})
	require.NoError(t, err)
	require.Equal(t, exitcode.Ok, ret.Code)
	return idAddr
}

// Applies a message, requiring it to succeed. Returns the message result.
func ApplyOk(t testing.TB, vm *VM, from, to addr.Address, method abi.MethodNum, params runtime.CBORMarshaler) MessageResult {
	return ApplyCode(t, vm, from, to, method, params, exitcode.Ok)
}

// Applies a message, requiring it to exit with the given code.
func ApplyCode(t testing.TB, vm *VM, from, to addr.Address, method abi.MethodNum, params runtime.CBORMarshaler, code exitcode.ExitCode) MessageResult {
	ret, err := vm.ApplyMessage(from, to, method, params)
	require.NoError(t, err)
	require.Equal(t, code, ret.Code, "unexpected exit code applying method %d to %v", method, to)
	return ret
}

// Queries the balance of a holder through the token actor.
func TokenBalance(t testing.TB, vm *VM, tokenAddr, holder addr.Address) abi.TokenAmount {
	ret := ApplyOk(t, vm, builtin.SystemActorAddr, tokenAddr, builtin.MethodsToken.BalanceOf, &holder)
	var balance abi.TokenAmount
	require.NoError(t, ret.Into(&balance))
	return balance
}

// Checks the invariants of every actor in the VM's committed state.
func CheckStateInvariants(t testing.TB, vm *VM) {
	msgs, err := vm.CheckStateInvariants()
	require.NoError(t, err)
	assert.True(t, msgs.IsEmpty(), "state invariants violated: %v", msgs.Messages())
}
