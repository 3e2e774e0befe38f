package gen2

import "fmt"

// CommandCode identifies a reader command.
type CommandCode int

const (
	CodeQuery CommandCode = iota
	CodeQueryRep
	CodeQueryAdjust
	CodeAck
	CodeReqRN
	CodeRead
)

func (c CommandCode) String() string {
	switch c {
	case CodeQuery:
		return "Query"
	case CodeQueryRep:
		return "QueryRep"
	case CodeQueryAdjust:
		return "QueryAdjust"
	case CodeAck:
		return "ACK"
	case CodeReqRN:
		return "Req_RN"
	case CodeRead:
		return "Read"
	}
	return fmt.Sprintf("CommandCode(%d)", int(c))
}

// Command is a reader-to-tag command. Encode renders the complete on-air
// bit string, CRC included.
type Command interface {
	Code() CommandCode
	Encode() string
}

// Query starts an inventory round.
type Query struct {
	DR      DivideRatio
	M       TagEncoding
	TRext   bool
	Sel     SelFlag
	Session Session
	Target  InventoryFlag
	Q       int
}

func (c Query) Code() CommandCode { return CodeQuery }

func (c Query) Encode() string {
	trext := "0"
	if c.TRext {
		trext = "1"
	}
	body := "1000" + c.DR.code() + c.M.code() + trext + c.Sel.code() +
		c.Session.code() + c.Target.code() + uintBits(uint64(c.Q&0xF), 4)
	return body + uintBits(uint64(CRC5(body)), 5)
}

func (c Query) String() string {
	return fmt.Sprintf("Query{DR=%s,M=%s,TRext=%t,Sel=%s,Session=%s,Target=%s,Q=%d}",
		c.DR, c.M, c.TRext, c.Sel, c.Session, c.Target, c.Q)
}

// QueryRep decrements the slot counters of arbitrating tags.
type QueryRep struct {
	Session Session
}

func (c QueryRep) Code() CommandCode { return CodeQueryRep }

func (c QueryRep) Encode() string { return "00" + c.Session.code() }

func (c QueryRep) String() string { return fmt.Sprintf("QueryRep{Session=%s}", c.Session) }

// QueryAdjust changes Q and makes arbitrating tags draw a new slot.
type QueryAdjust struct {
	Session Session
	UpDn    UpDn
}

func (c QueryAdjust) Code() CommandCode { return CodeQueryAdjust }

func (c QueryAdjust) Encode() string { return "1001" + c.Session.code() + c.UpDn.code() }

func (c QueryAdjust) String() string {
	return fmt.Sprintf("QueryAdjust{Session=%s,UpDn=%+d}", c.Session, int(c.UpDn))
}

// Ack acknowledges the tag that backscattered RN.
type Ack struct {
	RN uint16
}

func (c Ack) Code() CommandCode { return CodeAck }

func (c Ack) Encode() string { return "01" + uintBits(uint64(c.RN), 16) }

func (c Ack) String() string { return fmt.Sprintf("ACK{RN=%04X}", c.RN) }

// ReqRN asks an acknowledged tag for a handle.
type ReqRN struct {
	RN uint16
}

func (c ReqRN) Code() CommandCode { return CodeReqRN }

func (c ReqRN) Encode() string {
	body := "11000001" + uintBits(uint64(c.RN), 16)
	return body + uintBits(uint64(CRC16(body)), 16)
}

func (c ReqRN) String() string { return fmt.Sprintf("Req_RN{RN=%04X}", c.RN) }

// Read requests WordCount words of Bank starting at WordPtr.
type Read struct {
	Bank      MemoryBank
	WordPtr   uint32
	WordCount int
	RN        uint16
}

func (c Read) Code() CommandCode { return CodeRead }

func (c Read) Encode() string {
	body := "11000010" + c.Bank.code() + EncodeEBV(c.WordPtr) +
		uintBits(uint64(c.WordCount&0xFF), 8) + uintBits(uint64(c.RN), 16)
	return body + uintBits(uint64(CRC16(body)), 16)
}

func (c Read) String() string {
	return fmt.Sprintf("Read{Bank=%s,WordPtr=%d,WordCount=%d,RN=%04X}", c.Bank, c.WordPtr, c.WordCount, c.RN)
}
