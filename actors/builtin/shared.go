package builtin

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

///// Code shared by multiple built-in actors. /////

// Default log2 of branching factor for HAMTs.
// This value has been empirically chosen, but the optimal value for maps with different mutation profiles may differ.
const DefaultHamtBitwidth = 5

// Aborts with an ErrIllegalArgument if predicate is not true.
func RequireParam(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalArgument, msg, args...)
	}
}

// Propagates a failed send by aborting the current method with the same exit code.
func RequireSuccess(rt runtime.Runtime, e exitcode.ExitCode, msg string, args ...interface{}) {
	if !e.IsSuccess() {
		rt.Abortf(e, msg, args...)
	}
}

// Aborts with a formatted message if err is not nil.
// The provided message will be suffixed by ": %s" and the provided args suffixed by the err.
func RequireNoErr(rt runtime.Runtime, err error, defaultExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	if err != nil {
		newMsg := msg + ": %s"
		newArgs := append(args, err)
		code := exitcode.Unwrap(err, defaultExitCode)
		rt.Abortf(code, newMsg, newArgs...)
	}
}

// Resolves an externally supplied address to its ID form, aborting with ErrIllegalArgument if it is undefined
// or has no ID in the state tree.
func ResolveToIDAddr(rt runtime.Runtime, raw addr.Address) addr.Address {
	RequireParam(rt, raw != addr.Undef, "address must be defined")
	resolved, ok := rt.ResolveAddress(raw)
	RequireParam(rt, ok, "unable to resolve address %v", raw)
	return resolved
}

// Unwraps a send return value into out, aborting with ErrSerialization on failure.
func RequireReturn(rt runtime.Runtime, ret runtime.SendReturn, out runtime.CBORUnmarshaler, method abi.MethodNum) {
	err := ret.Into(out)
	RequireNoErr(rt, err, exitcode.ErrSerialization, "failed to decode return from method %d", method)
}
