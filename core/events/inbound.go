package events

const (
	KindSessionReady      Kind = "session_created"
	KindSpeechStarted     Kind = "speech_started"
	KindSpeechStopped     Kind = "speech_stopped"
	KindUserTranscript    Kind = "user_transcript"
	KindResponseStarted   Kind = "response_started"
	KindTextDelta         Kind = "text_delta"
	KindTextDone          Kind = "text_done"
	KindAudioDelta        Kind = "audio_delta"
	KindAudioDone         Kind = "audio_done"
	KindResponseDone      Kind = "response_done"
	KindCoachHint         Kind = "coach_hint"
	KindResponseCancelled Kind = "response_cancelled"
	KindError             Kind = "error"
	KindClosed            Kind = "closed"
)

// Inbound is a record received from the speech service.
type Inbound interface {
	Event
	inbound()
}

type SessionReady struct{ Base }

func NewSessionReady() SessionReady { return SessionReady{Base: NewBase(KindSessionReady)} }

type SpeechStarted struct{ Base }

func NewSpeechStarted() SpeechStarted { return SpeechStarted{Base: NewBase(KindSpeechStarted)} }

type SpeechStopped struct{ Base }

func NewSpeechStopped() SpeechStopped { return SpeechStopped{Base: NewBase(KindSpeechStopped)} }

// UserTranscript carries the user's transcript. Non-final transcripts
// replace each other; a final one closes the user turn.
type UserTranscript struct {
	Base
	Text    string
	IsFinal bool
}

func NewUserTranscript(text string, isFinal bool) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript), Text: text, IsFinal: isFinal}
}

type ResponseStarted struct{ Base }

func NewResponseStarted() ResponseStarted {
	return ResponseStarted{Base: NewBase(KindResponseStarted)}
}

type TextDelta struct {
	Base
	Delta string
}

func NewTextDelta(delta string) TextDelta {
	return TextDelta{Base: NewBase(KindTextDelta), Delta: delta}
}

type TextDone struct {
	Base
	Text string
}

func NewTextDone(text string) TextDone {
	return TextDone{Base: NewBase(KindTextDone), Text: text}
}

// AudioDelta carries decoded PCM16 bytes. The slice is owned by the
// receiver once delivered.
type AudioDelta struct {
	Base
	Audio []byte
}

func NewAudioDelta(audio []byte) AudioDelta {
	return AudioDelta{Base: NewBase(KindAudioDelta), Audio: audio}
}

type AudioDone struct{ Base }

func NewAudioDone() AudioDone { return AudioDone{Base: NewBase(KindAudioDone)} }

type ResponseDone struct{ Base }

func NewResponseDone() ResponseDone { return ResponseDone{Base: NewBase(KindResponseDone)} }

type CoachHint struct {
	Base
	Hint string
}

func NewCoachHint(hint string) CoachHint {
	return CoachHint{Base: NewBase(KindCoachHint), Hint: hint}
}

type ResponseCancelled struct{ Base }

func NewResponseCancelled() ResponseCancelled {
	return ResponseCancelled{Base: NewBase(KindResponseCancelled)}
}

type Error struct {
	Base
	Message string
}

func NewError(message string) Error {
	return Error{Base: NewBase(KindError), Message: message}
}

// CloseCause classifies why a connection ended.
type CloseCause int

const (
	// CloseLocal means the client closed the connection itself.
	CloseLocal CloseCause = iota
	// CloseNormal is a graceful close frame (1000, 1001).
	CloseNormal
	// CloseAbnormal means the connection dropped without a close frame.
	CloseAbnormal
	// CloseAuthInvalid is the service's authorization-invalid close code.
	CloseAuthInvalid
	// CloseTransient covers every other close code.
	CloseTransient
)

func (c CloseCause) String() string {
	switch c {
	case CloseLocal:
		return "local"
	case CloseNormal:
		return "normal"
	case CloseAbnormal:
		return "abnormal"
	case CloseAuthInvalid:
		return "auth_invalid"
	case CloseTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Terminal reports whether the caller must not reconnect without
// re-authenticating.
func (c CloseCause) Terminal() bool { return c == CloseAuthInvalid }

type Closed struct {
	Base
	Code   int
	Reason string
	Cause  CloseCause
}

func NewClosed(code int, reason string, cause CloseCause) Closed {
	return Closed{Base: NewBase(KindClosed), Code: code, Reason: reason, Cause: cause}
}

func (SessionReady) inbound()      {}
func (SpeechStarted) inbound()     {}
func (SpeechStopped) inbound()     {}
func (UserTranscript) inbound()    {}
func (ResponseStarted) inbound()   {}
func (TextDelta) inbound()         {}
func (TextDone) inbound()          {}
func (AudioDelta) inbound()        {}
func (AudioDone) inbound()         {}
func (ResponseDone) inbound()      {}
func (CoachHint) inbound()         {}
func (ResponseCancelled) inbound() {}
func (Error) inbound()             {}
func (Closed) inbound()            {}
