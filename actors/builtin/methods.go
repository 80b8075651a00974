package builtin

import (
	abi "github.com/filecoin-project/go-state-types/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

var MethodsAccount = struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}{MethodConstructor, 2}

var MethodsToken = struct {
	Constructor abi.MethodNum
	Transfer    abi.MethodNum
	BalanceOf   abi.MethodNum
	TotalSupply abi.MethodNum
}{MethodConstructor, 2, 3, 4}

var MethodsVesting = struct {
	Constructor        abi.MethodNum
	Grant              abi.MethodNum
	Revoke             abi.MethodNum
	VestedTokens       abi.MethodNum
	UnlockVestedTokens abi.MethodNum
	GetGrants          abi.MethodNum
	ProposeAdmin       abi.MethodNum
	AcceptAdmin        abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8}
