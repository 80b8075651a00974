package math

import (
	gobig "math/big"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

// Token quantities live in the unsigned 256-bit domain.
const TokenAmountBits = 256

// MaxTokenAmount is 2^256 - 1, the largest representable token quantity.
var MaxTokenAmount = big.Int{Int: new(gobig.Int).Sub(new(gobig.Int).Lsh(gobig.NewInt(1), TokenAmountBits), gobig.NewInt(1))}

var (
	ErrOverflow     = xerrors.New("arithmetic overflow")
	ErrUnderflow    = xerrors.New("arithmetic underflow")
	ErrDivideByZero = xerrors.New("division by zero")
)

// InDomain reports whether a is a valid token quantity: non-negative and at most MaxTokenAmount.
func InDomain(a abi.TokenAmount) bool {
	return a.Sign() >= 0 && a.LessThanEqual(MaxTokenAmount)
}

// CheckedAdd returns a + b, failing if either operand or the result leaves the token domain.
func CheckedAdd(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	if err := requireDomain(a, b); err != nil {
		return big.Zero(), err
	}
	sum := big.Add(a, b)
	if sum.GreaterThan(MaxTokenAmount) {
		return big.Zero(), xerrors.Errorf("%v + %v: %w", a, b, ErrOverflow)
	}
	return sum, nil
}

// CheckedSub returns a - b, failing if the result would be negative.
func CheckedSub(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	if err := requireDomain(a, b); err != nil {
		return big.Zero(), err
	}
	if a.LessThan(b) {
		return big.Zero(), xerrors.Errorf("%v - %v: %w", a, b, ErrUnderflow)
	}
	return big.Sub(a, b), nil
}

// CheckedMul returns a * b, failing if the product exceeds MaxTokenAmount.
func CheckedMul(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	if err := requireDomain(a, b); err != nil {
		return big.Zero(), err
	}
	product := big.Mul(a, b)
	if product.GreaterThan(MaxTokenAmount) {
		return big.Zero(), xerrors.Errorf("%v * %v: %w", a, b, ErrOverflow)
	}
	return product, nil
}

// CheckedDiv returns a / b truncated toward zero, failing on a zero divisor.
func CheckedDiv(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	if err := requireDomain(a, b); err != nil {
		return big.Zero(), err
	}
	if b.IsZero() {
		return big.Zero(), xerrors.Errorf("%v / %v: %w", a, b, ErrDivideByZero)
	}
	return big.Div(a, b), nil
}

func requireDomain(operands ...abi.TokenAmount) error {
	for _, o := range operands {
		if o.Sign() < 0 {
			return xerrors.Errorf("negative operand %v: %w", o, ErrUnderflow)
		}
		if o.GreaterThan(MaxTokenAmount) {
			return xerrors.Errorf("operand %v exceeds 2^%d-1: %w", o, TokenAmountBits, ErrOverflow)
		}
	}
	return nil
}
