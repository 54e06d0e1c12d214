package curve_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func TestScalarAddSubRoundTrip(t *testing.T) {
	a, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample a", err)
	b, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample b", err)

	sum := a.Add(b)
	back := sum.Sub(b)
	testutils.AssertBoolsEqual(t, "(a+b)-b == a", true, back.Equal(a))
}

func TestScalarBytesRoundTrip(t *testing.T) {
	a, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample a", err)

	back, err := curve.ScalarFromBytes(a.Bytes())
	testutils.AssertNoError(t, "decode scalar", err)
	testutils.AssertBoolsEqual(t, "round-tripped scalar equal", true, a.Equal(back))
}

func TestScalarOverflowRejected(t *testing.T) {
	n := curve.Order()
	_, err := curve.ScalarFromBytes(n.Bytes())
	testutils.AssertError(t, "scalar equal to group order", err)
}

func TestPointAddCommutesWithBaseMul(t *testing.T) {
	a, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample a", err)
	b, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample b", err)

	left := curve.BasePointMul(a.Add(b))
	right := curve.BasePointMul(a).Add(curve.BasePointMul(b))
	testutils.AssertBoolsEqual(t, "(a+b)*G == a*G + b*G", true, left.Equal(right))
}

func TestPointCompressedRoundTrip(t *testing.T) {
	a, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample a", err)
	p := curve.BasePointMul(a)

	back, err := curve.PointFromCompressed(p.SerializeCompressed())
	testutils.AssertNoError(t, "decode point", err)
	testutils.AssertBoolsEqual(t, "round-tripped point equal", true, p.Equal(back))
}

func TestGeneratorHIndependentOfG(t *testing.T) {
	h := curve.H()
	if !h.IsOnCurve() {
		t.Fatal("H is not on the curve")
	}
	g := curve.BasePointMul(curve.ScalarFromUint64(1))
	testutils.AssertBoolsEqual(t, "H != G", false, h.Equal(g))
}

func TestPointSubInverse(t *testing.T) {
	a, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample a", err)
	p := curve.BasePointMul(a)
	zero := p.Sub(p)
	testutils.AssertBoolsEqual(t, "p - p == identity", true, zero.IsIdentity())
}
