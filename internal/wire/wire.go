// Package wire implements the peer transport named in spec §6:
// line-delimited (newline-terminated) UTF-8 JSON over a reliable ordered
// TCP channel, every application message acknowledged by a literal
// "ACK" before the next one is sent. Ported from net/tcp.rs's
// send_msg/receive_msg pair, generalized from raw strings to arbitrary
// JSON payloads (Slate, MPBPContext, the fingerprint handshake).
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/jafalter/mw-btc-swap/internal/swaperr"
)

const ackMessage = "ACK"

// Conn wraps a net.Conn with the line-delimited JSON + ACK discipline.
// Not safe for concurrent use: spec §5 requires the two-party protocols
// to strictly alternate, so there is never more than one in-flight
// send/receive on a single Conn.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	log    zerolog.Logger
}

// NewConn wraps an already-established TCP connection.
func NewConn(conn net.Conn, log zerolog.Logger) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn), log: log.With().Str("component", "wire").Logger()}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(addr string, log zerolog.Logger) (*Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, swaperr.New(swaperr.KindPeerDisconnected, "wire.Dial", err)
	}
	return NewConn(conn, log), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) writeLine(line string) error {
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return swaperr.New(swaperr.KindPeerDisconnected, "wire.writeLine", err)
	}
	return nil
}

func (c *Conn) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", swaperr.New(swaperr.KindPeerDisconnected, "wire.readLine", err)
	}
	return line[:len(line)-1], nil
}

// SendJSON marshals v and writes it as a single line, then blocks for
// the peer's "ACK" reply.
func (c *Conn) SendJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "wire.SendJSON", fmt.Errorf("marshal message: %w", err))
	}
	c.log.Debug().Int("bytes", len(b)).Msg("writing message")
	if err := c.writeLine(string(b)); err != nil {
		return err
	}
	reply, err := c.readLine()
	if err != nil {
		return err
	}
	if reply != ackMessage {
		return swaperr.New(swaperr.KindPeerDisconnected, "wire.SendJSON", fmt.Errorf("expected ACK, got %q", reply))
	}
	c.log.Debug().Msg("received ACK")
	return nil
}

// RecvJSON reads one line, unmarshals it into v, and replies "ACK".
func (c *Conn) RecvJSON(v interface{}) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	c.log.Debug().Int("bytes", len(line)).Msg("read message")
	if err := json.Unmarshal([]byte(line), v); err != nil {
		return swaperr.New(swaperr.KindInvalidInput, "wire.RecvJSON", fmt.Errorf("unmarshal message: %w", err))
	}
	if err := c.writeLine(ackMessage); err != nil {
		return err
	}
	c.log.Debug().Msg("wrote ACK")
	return nil
}

// SendRaw writes a bare string line and waits for ACK. The fingerprint
// handshake does not use it: both its lines go through SendRawNoAck.
func (c *Conn) SendRaw(line string) error {
	if err := c.writeLine(line); err != nil {
		return err
	}
	reply, err := c.readLine()
	if err != nil {
		return err
	}
	if reply != ackMessage {
		return swaperr.New(swaperr.KindPeerDisconnected, "wire.SendRaw", fmt.Errorf("expected ACK, got %q", reply))
	}
	return nil
}

// SendRawNoAck writes a bare string line without waiting for an ACK —
// used for both lines of the checksum handshake: the fingerprint and
// the "OK"/"FAULT" reply, neither of which is acknowledged.
func (c *Conn) SendRawNoAck(line string) error {
	return c.writeLine(line)
}

// RecvRaw reads one bare string line and replies "ACK".
func (c *Conn) RecvRaw() (string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if err := c.writeLine(ackMessage); err != nil {
		return "", err
	}
	return line, nil
}

// RecvRawNoAck reads one bare string line without sending an ACK — the
// counterpart to SendRawNoAck for both lines of the checksum handshake.
func (c *Conn) RecvRawNoAck() (string, error) {
	return c.readLine()
}
