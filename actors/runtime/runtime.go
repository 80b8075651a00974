package runtime

import (
	"context"
	"io"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	exitcode "github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

// Runtime is the actor's view of the VM while it executes a message.
type Runtime interface {
	// The executing message.
	Message() Message

	// Epoch of the executing message. Never negative, and constant while the message runs.
	CurrEpoch() abi.ChainEpoch

	// Each exported method must validate its caller exactly once, before returning.
	// A failed validation aborts the message with ErrForbidden.
	ValidateImmediateCallerAcceptAny()
	ValidateImmediateCallerIs(addrs ...addr.Address)

	// Resolves a key address to the ID address of the actor it is registered to.
	// ID addresses resolve to themselves.
	ResolveAddress(address addr.Address) (addr.Address, bool)

	GetActorCodeCID(addr addr.Address) (ret cid.Cid, ok bool)

	State() StateHandle

	Store() Store

	// Invokes a method of another actor. A callee that fails leaves no state changes or events behind,
	// and its exit code is returned to the caller rather than aborting it.
	Send(toAddr addr.Address, methodNum abi.MethodNum, params CBORMarshaler, value abi.TokenAmount) (SendReturn, exitcode.ExitCode)

	// Ends the message with a non-zero exit code, discarding its state changes and events. Does not return.
	// The message is diagnostic only.
	Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{})

	// Appends a notification to the message's event log. Events are observable only if the message
	// completes successfully; an abort discards every event emitted by the message.
	EmitEvent(name string, payload CBORMarshaler)

	// Context for the storage layer. Actor code does not use it directly.
	Context() context.Context

	// Diagnostic output, not part of the state.
	Log(level rtt.LogLevel, msg string, args ...interface{})
}

// Store is the content-addressed object store backing actor state.
type Store interface {
	// Reports false if no object is stored under c.
	StoreGet(c cid.Cid, o CBORUnmarshaler) bool
	StorePut(x CBORMarshaler) cid.Cid
}

// Message identifies the parties of the executing message. Both are ID addresses.
type Message interface {
	Caller() addr.Address
	Receiver() addr.Address
}

// SendReturn holds the return value of a send, serialized or not.
type SendReturn interface {
	Into(CBORUnmarshaler) error
}

// StateHandle gives the executing actor exclusive access to its own state.
type StateHandle interface {
	// Create stores the initial state. Valid once, in the constructor.
	Create(obj CBORMarshaler)

	Readonly(obj CBORUnmarshaler)

	// Transaction loads the state into obj, runs f and stores obj again.
	// Send and EmitEvent abort when called from f, so side effects follow the transaction.
	//
	//	var st State
	//	rt.State().Transaction(&st, func() {
	//		st.TotalVesting = big.Add(st.TotalVesting, value)
	//	})
	Transaction(obj CBORer, f func())
}

// VMActor is the interface the VM uses to dispatch messages to actor code.
type VMActor interface {
	// Exports returns the actor's methods, indexed by method number.
	Exports() []interface{}
	// Code returns the actor's code CID.
	Code() cid.Cid
	// State returns a new, empty instance of the actor's state object.
	State() CBORer
	// IsSingleton reports whether only one instance of the actor may exist.
	IsSingleton() bool
}

// Satisfied by types generated with whyrusleeping/cbor-gen.
type CBORMarshaler interface {
	MarshalCBOR(w io.Writer) error
}

type CBORUnmarshaler interface {
	UnmarshalCBOR(r io.Reader) error
}

type CBORer interface {
	CBORMarshaler
	CBORUnmarshaler
}

// CBORBytes passes pre-serialized params through a send unchanged.
type CBORBytes []byte

func (b CBORBytes) MarshalCBOR(w io.Writer) error {
	_, err := w.Write(b)
	return err
}
