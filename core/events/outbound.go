package events

const (
	KindAudioFrame Kind = "audio"
	KindInterrupt  Kind = "interrupt"
)

// Outbound is a record sent to the speech service.
type Outbound interface {
	Event
	outbound()
}

// AudioFrame carries one encoded capture chunk. Ownership of Audio passes
// to the transport on send.
type AudioFrame struct {
	Base
	Seq   uint64
	Audio []byte
}

func NewAudioFrame(seq uint64, audio []byte) AudioFrame {
	return AudioFrame{Base: NewBase(KindAudioFrame), Seq: seq, Audio: audio}
}

type Interrupt struct{ Base }

func NewInterrupt() Interrupt { return Interrupt{Base: NewBase(KindInterrupt)} }

func (AudioFrame) outbound() {}
func (Interrupt) outbound()  {}
