package watch

// pollState coalesces refresh requests so at most one cycle runs at a
// time. A refresh arriving mid-cycle queues exactly one follow-up
// rather than starting a parallel cycle.
type pollState struct {
	pollRequested bool
	inFlight      bool
	queuedRefresh bool
}

// requestPoll returns true when the caller should schedule a cycle.
func (s *pollState) requestPoll() bool {
	if s.inFlight {
		s.queuedRefresh = true
		return false
	}
	if s.pollRequested {
		return false
	}
	s.pollRequested = true
	return true
}

// startPoll claims the pending request. Returns false when another
// cycle is in flight or nothing was requested.
func (s *pollState) startPoll() bool {
	if s.inFlight || !s.pollRequested {
		return false
	}
	s.pollRequested = false
	s.inFlight = true
	return true
}

// finishPollAndTakeNext clears the in-flight flag and promotes a queued
// refresh, if any, to a new request. Returns true when a follow-up
// cycle should run.
func (s *pollState) finishPollAndTakeNext() bool {
	s.inFlight = false
	if s.queuedRefresh {
		s.queuedRefresh = false
		s.pollRequested = true
		return true
	}
	return false
}
