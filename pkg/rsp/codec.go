// Package rsp implements the subset of the GDB Remote Serial Protocol this
// stub speaks: packet framing with checksums and acks (this file) and
// literal/regex command dispatch (dispatch.go).
//
// The framing algorithm mirrors pkg/proc/gdbserial/gdbserver_conn.go's
// send/recv, with the roles reversed: that code is the client side talking
// to a stub, this is the stub side talking to a debugger.
package rsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrConnectionLost is returned by Codec.Receive when the underlying stream
// ends before a complete packet (or even a partial one) was read.
var ErrConnectionLost = errors.New("rsp: connection lost")

// Codec frames RSP packets ($payload#cc) on top of a byte stream.
type Codec struct {
	r *bufio.Reader
	w io.Writer

	noAck bool
}

// NewCodec wraps rw for packet framing.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{r: bufio.NewReader(rw), w: rw}
}

// SetNoAckMode enables or disables the NoAck extension. Once enabled by
// QStartNoAckMode, the server never sends '+'/'-' and never exercises the
// checksum-mismatch retransmit path.
func (c *Codec) SetNoAckMode(v bool) {
	c.noAck = v
}

// NoAckMode reports the current ack mode.
func (c *Codec) NoAckMode() bool {
	return c.noAck
}

func checksum(payload []byte) uint8 {
	var sum uint8
	for _, b := range payload {
		sum += b
	}
	return sum
}

// Receive reads one packet from the stream.
//
// Bytes preceding the next '$' are dropped. If the checksum is wrong and
// NoAck mode is off, a '-' is written and ok is false so the caller knows to
// read again; the dispatcher never sees a payload with a bad checksum. If
// NoAck mode is on the checksum is still validated but no ack is written
// either way, per §4.4 step 4.
func (c *Codec) Receive() (payload []byte, ok bool, err error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, false, ErrConnectionLost
		}
		if b == '$' {
			break
		}
	}

	var buf []byte
	var sum uint8
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, false, ErrConnectionLost
		}
		if b == '#' {
			break
		}
		buf = append(buf, b)
		sum += b
	}

	var csumHex [2]byte
	if _, err := io.ReadFull(c.r, csumHex[:]); err != nil {
		return nil, false, ErrConnectionLost
	}
	parsed, err := strconv.ParseUint(string(csumHex[:]), 16, 8)
	wantSum := uint8(parsed)
	if err != nil {
		wantSum = sum + 1 // force a mismatch on a malformed checksum field
	}

	if sum != wantSum {
		if !c.noAck {
			c.w.Write([]byte{'-'})
		}
		return nil, false, nil
	}

	if !c.noAck {
		c.w.Write([]byte{'+'})
	}
	return buf, true, nil
}

// Send writes payload framed as $payload#cc and flushes.
func (c *Codec) Send(payload []byte) error {
	sum := checksum(payload)
	framed := make([]byte, 0, len(payload)+4)
	framed = append(framed, '$')
	framed = append(framed, payload...)
	framed = append(framed, '#')
	framed = append(framed, fmt.Sprintf("%02x", sum)...)
	_, err := c.w.Write(framed)
	return err
}
