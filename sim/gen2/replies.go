package gen2

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Reply is the closed set of tag-to-reader replies. The unexported marker
// keeps the set closed: a type switch over RN16Reply, AckReply, HandleReply
// and ReadReply is exhaustive.
type Reply interface {
	BitLen() int
	isReply()
}

// RN16Reply is the arbitration reply to Query, QueryRep and QueryAdjust.
type RN16Reply struct {
	RN uint16
}

func (RN16Reply) isReply() {}
func (RN16Reply) BitLen() int { return 16 }
func (r RN16Reply) String() string { return fmt.Sprintf("RN16{%04X}", r.RN) }

// AckReply carries PC, EPC and CRC-16 in reply to a matching ACK.
type AckReply struct {
	PC  uint16
	EPC []byte
}

func (AckReply) isReply() {}
func (r AckReply) BitLen() int { return 16 + 8*len(r.EPC) + 16 }
func (r AckReply) String() string {
	return fmt.Sprintf("AckReply{PC=%04X,EPC=%s}", r.PC, strings.ToUpper(hex.EncodeToString(r.EPC)))
}

// HandleReply carries a fresh handle and CRC-16 in reply to Req_RN.
type HandleReply struct {
	Handle uint16
}

func (HandleReply) isReply() {}
func (HandleReply) BitLen() int { return 32 }
func (r HandleReply) String() string { return fmt.Sprintf("Handle{%04X}", r.Handle) }

// ReadReply carries a header bit, the requested words, the handle and CRC-16.
type ReadReply struct {
	Memory []byte
	Handle uint16
}

func (ReadReply) isReply() {}
func (r ReadReply) BitLen() int {
	return 1 + 16*r.Words() + 32
}

// Words returns the number of 16-bit words carried.
func (r ReadReply) Words() int {
	return (len(r.Memory) + 1) / 2
}

func (r ReadReply) String() string {
	return fmt.Sprintf("ReadReply{Words=%d,Memory=%s}", r.Words(), strings.ToUpper(hex.EncodeToString(r.Memory)))
}

// PCWord builds a protocol-control word for an EPC of epcBits length.
func PCWord(epcBits int) uint16 {
	words := (epcBits + 15) / 16
	return uint16(words&0x1F) << 11
}
