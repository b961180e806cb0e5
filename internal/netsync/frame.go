package netsync

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
	"golang.org/x/crypto/blake2b"
)

// ProtocolVersion is bumped whenever the frame layout or the argument
// encoding of any command changes.
const ProtocolVersion = 1

const (
	TypeHello   = "hello"
	TypeCommand = "cmd"
)

// Frame is one message on a peer connection.
type Frame struct {
	Type     string          `json:"type"`
	Version  int             `json:"version,omitempty"`
	Name     string          `json:"name,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Company  company.ID      `json:"company"`
	Flags    command.Flags   `json:"flags,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	Checksum string          `json:"checksum,omitempty"`
}

// chain is the running blake2b-256 over every command frame a sender has
// produced. Both ends advance it identically, so a dropped, reordered or
// altered frame shows up as a checksum mismatch.
type chain struct {
	seq  uint64
	prev [blake2b.Size256]byte
}

func (c *chain) digest(f *Frame) [blake2b.Size256]byte {
	buf := make([]byte, 0, len(c.prev)+len(f.Kind)+len(f.Args)+32)
	buf = append(buf, c.prev[:]...)
	buf = strconv.AppendUint(buf, f.Seq, 10)
	buf = append(buf, '|')
	buf = append(buf, f.Kind...)
	buf = append(buf, '|')
	buf = strconv.AppendUint(buf, uint64(f.Company), 10)
	buf = append(buf, '|')
	buf = strconv.AppendUint(buf, uint64(f.Flags), 10)
	buf = append(buf, '|')
	buf = append(buf, f.Args...)
	return blake2b.Sum256(buf)
}

// seal assigns the next sequence number and checksum to an outgoing frame.
func (c *chain) seal(f *Frame) {
	c.seq++
	f.Seq = c.seq
	sum := c.digest(f)
	f.Checksum = hex.EncodeToString(sum[:])
	c.prev = sum
}

// verify checks an incoming frame against the sender's chain and advances it.
func (c *chain) verify(f *Frame) error {
	if f.Seq != c.seq+1 {
		return fmt.Errorf("frame seq %d, want %d", f.Seq, c.seq+1)
	}
	sum := c.digest(f)
	if hex.EncodeToString(sum[:]) != f.Checksum {
		return fmt.Errorf("frame %d checksum mismatch", f.Seq)
	}
	c.seq = f.Seq
	c.prev = sum
	return nil
}
