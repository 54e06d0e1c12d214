package aggsig_test

import (
	"testing"

	"github.com/jafalter/mw-btc-swap/internal/aggsig"
	"github.com/jafalter/mw-btc-swap/internal/curve"
	"github.com/jafalter/mw-btc-swap/internal/testutils"
)

func newExcess(t *testing.T) *curve.Scalar {
	t.Helper()
	s, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample excess", err)
	return s
}

func TestTwoPartyAggregateSignatureVerifies(t *testing.T) {
	message := []byte("kernel message")

	xa := newExcess(t)
	xb := newExcess(t)

	alice, err := aggsig.NewSigner(1, xa)
	testutils.AssertNoError(t, "new alice signer", err)
	bob, err := aggsig.NewSigner(2, xb)
	testutils.AssertNoError(t, "new bob signer", err)

	aggNonce := aggsig.AggregateNonces(alice.PublicNonce, bob.PublicNonce)
	aggExcess := aggsig.AggregateExcess(alice.PublicExcess, bob.PublicExcess)

	sa := alice.Round2(aggNonce, aggExcess, message)
	sb := bob.Round2(aggNonce, aggExcess, message)

	testutils.AssertNoError(t, "verify alice partial", aggsig.VerifyPartial(sa, alice.PublicNonce, alice.PublicExcess, aggNonce, aggExcess, message, nil))
	testutils.AssertNoError(t, "verify bob partial", aggsig.VerifyPartial(sb, bob.PublicNonce, bob.PublicExcess, aggNonce, aggExcess, message, nil))

	sig, err := aggsig.Finalize(aggNonce, aggExcess, message, sa, sb)
	testutils.AssertNoError(t, "finalize", err)
	testutils.AssertNoError(t, "verify final signature", aggsig.Verify(sig, aggExcess, message))
}

func TestFinalizeRejectsTamperedPartial(t *testing.T) {
	message := []byte("kernel message")
	xa := newExcess(t)
	xb := newExcess(t)

	alice, _ := aggsig.NewSigner(1, xa)
	bob, _ := aggsig.NewSigner(2, xb)

	aggNonce := aggsig.AggregateNonces(alice.PublicNonce, bob.PublicNonce)
	aggExcess := aggsig.AggregateExcess(alice.PublicExcess, bob.PublicExcess)

	sa := alice.Round2(aggNonce, aggExcess, message)
	sb := bob.Round2(aggNonce, aggExcess, message)
	sb.S = sb.S.Add(curve.ScalarFromUint64(1))

	_, err := aggsig.Finalize(aggNonce, aggExcess, message, sa, sb)
	testutils.AssertError(t, "finalize with tampered partial", err)
}

func TestAdaptorSignatureRevealsWitness(t *testing.T) {
	message := []byte("contract kernel message")
	xa := newExcess(t)
	xb := newExcess(t)

	alice, _ := aggsig.NewSigner(1, xa)
	bob, _ := aggsig.NewSigner(2, xb)

	adaptorSecret, err := curve.RandomScalar()
	testutils.AssertNoError(t, "sample adaptor secret", err)
	adaptorPublic := curve.BasePointMul(adaptorSecret)

	aggNonce := aggsig.AggregateNonces(alice.PublicNonce, bob.PublicNonce)
	aggExcess := aggsig.AggregateExcess(alice.PublicExcess, bob.PublicExcess)

	aptSig, plainSig := bob.Round2Adaptor(aggNonce, aggExcess, message, adaptorSecret)

	testutils.AssertNoError(t, "verify bob adaptor partial", aggsig.VerifyPartial(aptSig, bob.PublicNonce, bob.PublicExcess, aggNonce, aggExcess, message, adaptorPublic))
	testutils.AssertError(t, "adaptor partial must not verify without offset", aggsig.VerifyPartial(aptSig, bob.PublicNonce, bob.PublicExcess, aggNonce, aggExcess, message, nil))

	recovered := aggsig.ExtWitness(aptSig.S, plainSig.S)
	testutils.AssertBoolsEqual(t, "recovered witness matches adaptor secret", true, recovered.Equal(adaptorSecret))
}
