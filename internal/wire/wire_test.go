package wire_test

import (
	"net"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jafalter/mw-btc-swap/internal/testutils"
	"github.com/jafalter/mw-btc-swap/internal/wire"
)

type payload struct {
	Hello string `json:"hello"`
}

func TestSendRecvJSONRoundTripsWithACK(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := wire.NewConn(clientConn, zerolog.Nop())
	server := wire.NewConn(serverConn, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- client.SendJSON(payload{Hello: "world"})
	}()

	var received payload
	err := server.RecvJSON(&received)
	testutils.AssertNoError(t, "recv json", err)
	testutils.AssertStringsEqual(t, "payload round-trips", "world", received.Hello)
	testutils.AssertNoError(t, "send completes after ACK", <-done)
}

func TestSendRawRejectsNonACKReply(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := wire.NewConn(clientConn, zerolog.Nop())
	server := wire.NewConn(serverConn, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- client.SendRaw("fingerprint-hex")
	}()

	_, err := server.RecvRawNoAck()
	testutils.AssertNoError(t, "server reads fingerprint", err)
	testutils.AssertNoError(t, "server replies FAULT", server.SendRawNoAck("FAULT"))

	err = <-done
	testutils.AssertError(t, "non-ACK reply surfaces as error", err)
}
