package session

// View is a consistent snapshot of what a UI shows for a session.
type View struct {
	ID                    string
	State                 State
	Listening             bool
	Playing               bool
	PartialUserTranscript string
	PartialResponseText   string
	CoachHint             string
	LastError             string
	Terminal              bool
	Records               int
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PartialUserTranscript is the latest interim transcript of the current user
// turn, empty once the turn is final.
func (s *Session) PartialUserTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partialUser
}

// PartialResponseText is the response text accumulated so far.
func (s *Session) PartialResponseText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partialResponse
}

func (s *Session) CoachHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coachHint
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// IsPlaying reports whether synthesized audio is playing or queued.
func (s *Session) IsPlaying() bool {
	return s.player.IsPlaying()
}

// PlaybackDrained is closed the next time queued playback runs out.
func (s *Session) PlaybackDrained() <-chan struct{} {
	return s.player.Drained()
}

// Transcript returns a copy of every record rendered so far. Records survive
// disconnects so a retry never loses what the user already saw.
func (s *Session) Transcript() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.copy()
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ID:                    s.id,
		State:                 s.state,
		Listening:             s.capturing,
		Playing:               s.player.IsPlaying(),
		PartialUserTranscript: s.partialUser,
		PartialResponseText:   s.partialResponse,
		CoachHint:             s.coachHint,
		Records:               s.transcript.len(),
	}
	if s.lastErr != nil {
		view.LastError = s.lastErr.Error()
		view.Terminal = IsTerminal(s.lastErr)
	}
	return view
}
