package puppet

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	cbg "github.com/whyrusleeping/cbor-gen"

	builtin "github.com/filecoin-project/vesting-actors/actors/builtin"
	runtime "github.com/filecoin-project/vesting-actors/actors/runtime"
	exitcode "github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	adt "github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// PuppetActorCodeID identifies the puppet, an actor that relays messages on behalf of tests.
var PuppetActorCodeID cid.Cid

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	c, err := builder.Sum([]byte("vestingactors/1/puppet"))
	if err != nil {
		panic(err)
	}
	PuppetActorCodeID = c
}

var MethodsPuppet = struct {
	Constructor abi.MethodNum
	Send        abi.MethodNum
}{builtin.MethodConstructor, 2}

const EventRelay = "puppet-relay"

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Send,
	}
}

func (a Actor) Code() cid.Cid {
	return PuppetActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() runtime.CBORer {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type State struct {
	// Count of relayed sends, whether or not they succeeded.
	Sends uint64
}

func (a Actor) Constructor(rt runtime.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	rt.State().Create(&State{})
	return nil
}

type SendParams struct {
	To     addr.Address
	Method abi.MethodNum
	Params []byte
	// If non-zero, the puppet aborts with this code after the relayed send returns.
	AbortWith exitcode.ExitCode
}

type SendReturn struct {
	Return []byte
	Code   exitcode.ExitCode
}

// Send relays a message with pre-serialized params and reports the callee's exit code.
func (a Actor) Send(rt runtime.Runtime, params *SendParams) *SendReturn {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.State().Transaction(&st, func() {
		st.Sends++
	})

	ret, code := rt.Send(params.To, params.Method, runtime.CBORBytes(params.Params), big.Zero())
	out := &SendReturn{Code: code}
	if code.IsSuccess() {
		var raw cbg.Deferred
		if err := ret.Into(&raw); err == nil {
			out.Return = raw.Raw
		}
	}

	rt.EmitEvent(EventRelay, out)
	if params.AbortWith != exitcode.Ok {
		rt.Abortf(params.AbortWith, "puppet aborting after relay to %v", params.To)
	}
	return out
}
