package swaperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/swaperr"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func TestErrorKindUnwrapsWrappedError(t *testing.T) {
	base := swaperr.New(swaperr.KindInsufficientFunds, "mw.SpendCoins", errors.New("short"))
	wrapped := fmt.Errorf("spend failed: %w", base)

	kind, ok := swaperr.ErrorKind(wrapped)
	testutils.AssertBoolsEqual(t, "wrapped error is classified", true, ok)
	testutils.AssertBoolsEqual(t, "kind matches", true, kind == swaperr.KindInsufficientFunds)
}

func TestErrorKindRejectsPlainError(t *testing.T) {
	_, ok := swaperr.ErrorKind(errors.New("not a swap error"))
	testutils.AssertBoolsEqual(t, "plain error is not classified", false, ok)
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind swaperr.Kind
		want int
	}{
		{swaperr.KindInvalidInput, 1},
		{swaperr.KindNodeRPCError, 3},
		{swaperr.KindTimeoutElapsed, 3},
		{swaperr.KindInsufficientFunds, 2},
		{swaperr.KindInvalidRangeProof, 2},
		{swaperr.KindInvalidAdaptorSig, 2},
		{swaperr.KindInvalidFinalSignature, 2},
		{swaperr.KindPeerDisconnected, 2},
		{swaperr.KindChecksumMismatch, 2},
	}
	for _, c := range cases {
		testutils.AssertIntsEqual(t, fmt.Sprintf("exit code for %s", c.kind), c.want, c.kind.ExitCode())
	}
}

func TestErrorStringIncludesOpAndKind(t *testing.T) {
	err := swaperr.New(swaperr.KindInvalidAdaptorSig, "mw.FinTx", nil)
	testutils.AssertStringsEqual(t, "error string", "mw.FinTx: InvalidAdaptorSig", err.Error())
}
