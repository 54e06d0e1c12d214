package mw_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

// TestFeeIsLinearInInputsOutputsKernels pins the exact constants a
// dContractMwTx settlement (one input, one output, one kernel) relies
// on to size its claim value.
func TestFeeIsLinearInInputsOutputsKernels(t *testing.T) {
	testutils.AssertUintsEqual(t, "1-in/1-out/1-kernel fee", mw.FeeBase+mw.FeePerInputUnit+mw.FeePerOutputUnit, mw.Fee(1, 1, 1))
	testutils.AssertUintsEqual(t, "zero inputs/outputs still charges the base kernel fee", mw.FeeBase, mw.Fee(0, 0, 1))
	testutils.AssertUintsEqual(t, "fee scales with extra outputs", mw.FeeBase+2*mw.FeePerInputUnit+3*mw.FeePerOutputUnit, mw.Fee(2, 3, 1))
}
