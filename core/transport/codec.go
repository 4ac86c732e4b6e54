package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-live/core/events"
)

// ErrProtocolParse marks an inbound record that could not be decoded. Such
// records are dropped; the connection stays open.
var ErrProtocolParse = errors.New("protocol parse error")

// Record is the wire shape of every record in both directions. Fields not
// used by a record type are omitted.
type Record struct {
	Type       string `json:"type" jsonschema:"required,enum=audio,enum=interrupt,enum=session_created,enum=speech_started,enum=speech_stopped,enum=user_transcript,enum=response_started,enum=text_delta,enum=text_done,enum=audio_delta,enum=audio_done,enum=response_done,enum=coach_hint,enum=response_cancelled,enum=error"`
	Audio      string `json:"audio,omitempty" jsonschema:"description=base64 PCM16 mono; 16kHz upstream and 24kHz downstream"`
	Transcript string `json:"transcript,omitempty"`
	IsFinal    bool   `json:"is_final,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Text       string `json:"text,omitempty"`
	Hint       string `json:"hint,omitempty"`
	Message    string `json:"message,omitempty"`
}

func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolParse, fmt.Sprintf(format, args...))
}

// DecodeInbound turns one text frame into a typed inbound record.
func DecodeInbound(data []byte) (events.Inbound, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolParse, err)
	}

	switch events.Kind(record.Type) {
	case events.KindSessionReady:
		return events.NewSessionReady(), nil
	case events.KindSpeechStarted:
		return events.NewSpeechStarted(), nil
	case events.KindSpeechStopped:
		return events.NewSpeechStopped(), nil
	case events.KindUserTranscript:
		return events.NewUserTranscript(record.Transcript, record.IsFinal), nil
	case events.KindResponseStarted:
		return events.NewResponseStarted(), nil
	case events.KindTextDelta:
		return events.NewTextDelta(record.Delta), nil
	case events.KindTextDone:
		return events.NewTextDone(record.Text), nil
	case events.KindAudioDelta:
		pcm, err := base64.StdEncoding.DecodeString(record.Audio)
		if err != nil {
			return nil, parseError("audio_delta payload: %v", err)
		}
		return events.NewAudioDelta(pcm), nil
	case events.KindAudioDone:
		return events.NewAudioDone(), nil
	case events.KindResponseDone:
		return events.NewResponseDone(), nil
	case events.KindCoachHint:
		return events.NewCoachHint(record.Hint), nil
	case events.KindResponseCancelled:
		return events.NewResponseCancelled(), nil
	case events.KindError:
		return events.NewError(record.Message), nil
	case "":
		return nil, parseError("record has no type")
	default:
		return nil, parseError("unknown record type %q", record.Type)
	}
}

// EncodeOutbound renders an outbound record as a JSON text frame.
func EncodeOutbound(msg events.Outbound) ([]byte, error) {
	var record Record
	switch m := msg.(type) {
	case events.AudioFrame:
		record = Record{
			Type:  string(events.KindAudioFrame),
			Audio: base64.StdEncoding.EncodeToString(m.Audio),
		}
	case events.Interrupt:
		record = Record{Type: string(events.KindInterrupt)}
	default:
		return nil, fmt.Errorf("unsupported outbound record %T", msg)
	}
	return json.Marshal(record)
}
