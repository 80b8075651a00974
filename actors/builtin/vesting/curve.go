package vesting

import (
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/util/math"
)

// VestedAmount returns the portion of a grant vested at epoch t.
// Nothing is vested before the cliff and everything is vested from the end epoch on.
// In between, the vested amount grows linearly from the start epoch, truncated toward zero.
// The product Value * (t - Start) is computed before dividing and must stay within the token domain.
func VestedAmount(g *Grant, t abi.ChainEpoch) (abi.TokenAmount, error) {
	if t < g.Cliff {
		return big.Zero(), nil
	}
	if t >= g.End {
		return g.Value, nil
	}
	elapsed := big.NewInt(int64(t - g.Start))
	duration := big.NewInt(int64(g.End - g.Start))
	scaled, err := math.CheckedMul(g.Value, elapsed)
	if err != nil {
		return big.Zero(), err
	}
	return math.CheckedDiv(scaled, duration)
}

// TotalVested sums VestedAmount over grants.
func TotalVested(grants []Grant, t abi.ChainEpoch) (abi.TokenAmount, error) {
	total := big.Zero()
	for i := range grants {
		vested, err := VestedAmount(&grants[i], t)
		if err != nil {
			return big.Zero(), err
		}
		if total, err = math.CheckedAdd(total, vested); err != nil {
			return big.Zero(), err
		}
	}
	return total, nil
}
