package gen2

import "fmt"

// ReaderFrame is a command together with the link timing it is sent with.
// A Query is preceded by the full preamble, any other command by frame-sync.
type ReaderFrame struct {
	Command Command
	Timing  LinkTiming
}

// NewReaderFrame wraps cmd for transmission.
func NewReaderFrame(cmd Command, timing LinkTiming) *ReaderFrame {
	return &ReaderFrame{Command: cmd, Timing: timing}
}

// Bits returns the encoded command.
func (f *ReaderFrame) Bits() string {
	return f.Command.Encode()
}

// BitLen returns the number of command bits.
func (f *ReaderFrame) BitLen() int {
	return len(f.Bits())
}

// Preamble returns the duration of the preamble or frame-sync.
func (f *ReaderFrame) Preamble() float64 {
	if f.Command.Code() == CodeQuery {
		return f.Timing.ReaderPreamble()
	}
	return f.Timing.FrameSync()
}

// Duration returns the total on-air time of the frame.
func (f *ReaderFrame) Duration() float64 {
	return f.Preamble() + f.Timing.ReaderBitsDuration(f.Bits())
}

func (f *ReaderFrame) String() string {
	return fmt.Sprintf("%v (%d bits, %.2fus)", f.Command, f.BitLen(), f.Duration()*1e6)
}

// TagFrame is a reply together with the link timing it is backscattered with.
type TagFrame struct {
	Reply  Reply
	Timing LinkTiming
}

// NewTagFrame wraps reply for backscatter.
func NewTagFrame(reply Reply, timing LinkTiming) *TagFrame {
	return &TagFrame{Reply: reply, Timing: timing}
}

// BitLen returns the number of reply data bits; the preamble and the dummy
// bit are not counted.
func (f *TagFrame) BitLen() int {
	return f.Reply.BitLen()
}

// Preamble returns the duration of the tag preamble.
func (f *TagFrame) Preamble() float64 {
	return f.Timing.TagPreamble()
}

// Duration returns the total on-air time of the frame.
func (f *TagFrame) Duration() float64 {
	return f.Preamble() + f.Timing.TagBitsDuration(f.BitLen())
}

func (f *TagFrame) String() string {
	return fmt.Sprintf("%v (%d bits, %.2fus)", f.Reply, f.BitLen(), f.Duration()*1e6)
}
