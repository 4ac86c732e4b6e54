package session

type callbacks struct {
	onRecord            func(Record)
	onStateChanged      func(from, to State)
	onError             func(error)
	onPartialTranscript func(string)
	onPartialResponse   func(string)
}

type notification interface{ isNotification() }

type stateChanged struct{ from, to State }
type recordAdded struct{ record Record }
type errorRaised struct{ err error }
type partialTranscript struct{ text string }
type partialResponse struct{ text string }

func (stateChanged) isNotification()      {}
func (recordAdded) isNotification()       {}
func (errorRaised) isNotification()       {}
func (partialTranscript) isNotification() {}
func (partialResponse) isNotification()   {}

// notifications collects callbacks while the session lock is held so they
// can be delivered, in order, after it is released.
type notifications []notification

func (n *notifications) add(item notification) { *n = append(*n, item) }

func (c callbacks) emit(pending notifications) {
	for _, item := range pending {
		switch typed := item.(type) {
		case stateChanged:
			if c.onStateChanged != nil {
				c.onStateChanged(typed.from, typed.to)
			}
		case recordAdded:
			if c.onRecord != nil {
				c.onRecord(typed.record)
			}
		case errorRaised:
			if c.onError != nil {
				c.onError(typed.err)
			}
		case partialTranscript:
			if c.onPartialTranscript != nil {
				c.onPartialTranscript(typed.text)
			}
		case partialResponse:
			if c.onPartialResponse != nil {
				c.onPartialResponse(typed.text)
			}
		}
	}
}
