// Package events defines the typed records exchanged with the speech service.
//
// Records are grouped by direction:
//
//   - Inbound: decoded once at the transport boundary from the service's
//     tagged JSON records and delivered to the session in arrival order.
//   - Outbound: produced by the session and capture pipeline, encoded to the
//     wire format by the transport.
//
// The Kind of every record is its wire tag.
//
// Inbound records
//
//   - SessionReady (session_created): the service accepted the session.
//   - SpeechStarted (speech_started): remote VAD detected user speech.
//   - SpeechStopped (speech_stopped): remote VAD detected end of user speech.
//   - UserTranscript (user_transcript): partial or final user transcript.
//   - ResponseStarted (response_started): the service started a response.
//   - TextDelta (text_delta): append-only response text segment.
//   - TextDone (text_done): final response text.
//   - AudioDelta (audio_delta): PCM16 24 kHz mono synthesized audio chunk.
//   - AudioDone (audio_done): no more audio for the current response.
//   - ResponseDone (response_done): the response is complete.
//   - CoachHint (coach_hint): out-of-band advisory text.
//   - ResponseCancelled (response_cancelled): the service dropped the
//     current response.
//   - Error (error): service-reported error message.
//   - Closed (closed): connection ended. Never sent by the service; the
//     transport synthesizes it as the last record of every connection.
//
// Outbound records
//
//   - AudioFrame (audio): PCM16 16 kHz mono captured audio chunk.
//   - Interrupt (interrupt): stop the current response.
package events
