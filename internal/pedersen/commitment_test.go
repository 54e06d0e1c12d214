package pedersen_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/pedersen"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func TestCommitOpeningRoundTrip(t *testing.T) {
	blind, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample blind", err)

	c := pedersen.Commit(1_000_000, blind)
	testutils.AssertBoolsEqual(t, "commitment opens to (value, blind)", true, c.VerifyOpening(1_000_000, blind))
	testutils.AssertBoolsEqual(t, "commitment does not open to wrong value", false, c.VerifyOpening(999_999, blind))
}

func TestCommitHomomorphicAddition(t *testing.T) {
	r1, _ := curve.RandomScalar()
	r2, _ := curve.RandomScalar()

	c1 := pedersen.Commit(100, r1)
	c2 := pedersen.Commit(200, r2)
	sum := c1.Add(c2)

	expected := pedersen.Commit(300, r1.Add(r2))
	testutils.AssertBoolsEqual(t, "C(100,r1)+C(200,r2) == C(300,r1+r2)", true, sum.Equal(expected))
}

func TestCommitHexRoundTrip(t *testing.T) {
	blind, _ := curve.RandomScalar()
	c := pedersen.Commit(42, blind)

	back, err := pedersen.FromHex(c.Hex())
	testutils.AssertNoError(t, "decode commitment hex", err)
	testutils.AssertBoolsEqual(t, "round-tripped commitment equal", true, c.Equal(back))
}
