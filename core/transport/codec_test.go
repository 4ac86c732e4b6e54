package transport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/koscakluka/ema-live/core/events"
)

func TestDecodeInboundKnownRecords(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		expected events.Kind
		check    func(t *testing.T, event events.Inbound)
	}{
		{name: "session created", data: `{"type":"session_created"}`, expected: events.KindSessionReady},
		{name: "speech started", data: `{"type":"speech_started"}`, expected: events.KindSpeechStarted},
		{name: "speech stopped", data: `{"type":"speech_stopped"}`, expected: events.KindSpeechStopped},
		{
			name:     "user transcript",
			data:     `{"type":"user_transcript","transcript":"hello there","is_final":true}`,
			expected: events.KindUserTranscript,
			check: func(t *testing.T, event events.Inbound) {
				transcript := event.(events.UserTranscript)
				if transcript.Text != "hello there" || !transcript.IsFinal {
					t.Fatalf("unexpected transcript %+v", transcript)
				}
			},
		},
		{name: "response started", data: `{"type":"response_started"}`, expected: events.KindResponseStarted},
		{
			name:     "text delta",
			data:     `{"type":"text_delta","delta":"Hel"}`,
			expected: events.KindTextDelta,
			check: func(t *testing.T, event events.Inbound) {
				if got := event.(events.TextDelta).Delta; got != "Hel" {
					t.Fatalf("expected delta %q, got %q", "Hel", got)
				}
			},
		},
		{name: "text done", data: `{"type":"text_done","text":"Hello"}`, expected: events.KindTextDone},
		{
			name:     "audio delta",
			data:     `{"type":"audio_delta","audio":"AQIDBA=="}`,
			expected: events.KindAudioDelta,
			check: func(t *testing.T, event events.Inbound) {
				audio := event.(events.AudioDelta).Audio
				if len(audio) != 4 || audio[0] != 1 || audio[3] != 4 {
					t.Fatalf("unexpected audio payload %v", audio)
				}
			},
		},
		{name: "audio done", data: `{"type":"audio_done"}`, expected: events.KindAudioDone},
		{name: "response done", data: `{"type":"response_done"}`, expected: events.KindResponseDone},
		{
			name:     "coach hint",
			data:     `{"type":"coach_hint","hint":"ask an open question"}`,
			expected: events.KindCoachHint,
			check: func(t *testing.T, event events.Inbound) {
				if got := event.(events.CoachHint).Hint; got != "ask an open question" {
					t.Fatalf("unexpected hint %q", got)
				}
			},
		},
		{name: "response cancelled", data: `{"type":"response_cancelled"}`, expected: events.KindResponseCancelled},
		{
			name:     "error",
			data:     `{"type":"error","message":"rate limited"}`,
			expected: events.KindError,
			check: func(t *testing.T, event events.Inbound) {
				if got := event.(events.Error).Message; got != "rate limited" {
					t.Fatalf("unexpected message %q", got)
				}
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			event, err := DecodeInbound([]byte(testCase.data))
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if event.Kind() != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, event.Kind())
			}
			if testCase.check != nil {
				testCase.check(t, event)
			}
		})
	}
}

func TestDecodeInboundRejectsInvalidRecords(t *testing.T) {
	for name, data := range map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"delta":"x"}`,
		"unknown type": `{"type":"mystery"}`,
		"bad base64":   `{"type":"audio_delta","audio":"***"}`,
		"wrong shape":  `["session_created"]`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(data)); !errors.Is(err, ErrProtocolParse) {
				t.Fatalf("expected ErrProtocolParse, got %v", err)
			}
		})
	}
}

func TestEncodeOutbound(t *testing.T) {
	data, err := EncodeOutbound(events.NewAudioFrame(3, []byte{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if record["type"] != "audio" || record["audio"] != "AQIDBA==" || len(record) != 2 {
		t.Fatalf("unexpected audio record %s", data)
	}

	data, err = EncodeOutbound(events.NewInterrupt())
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(data) != `{"type":"interrupt"}` {
		t.Fatalf("unexpected interrupt record %s", data)
	}
}
