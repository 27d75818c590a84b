package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPollStateSingleRequest(t *testing.T) {
	var s pollState
	assert.True(t, s.requestPoll())
	assert.True(t, s.startPoll())
	assert.False(t, s.finishPollAndTakeNext())
}

func TestPollStateDuplicateRequestsCoalesce(t *testing.T) {
	var s pollState
	assert.True(t, s.requestPoll())
	assert.False(t, s.requestPoll(), "second request before start is absorbed")
	assert.True(t, s.startPoll())
	assert.False(t, s.startPoll(), "only one cycle may run")
	assert.False(t, s.finishPollAndTakeNext())
}

func TestPollStateRefreshDuringCycleQueuesOneFollowUp(t *testing.T) {
	var s pollState
	assert.True(t, s.requestPoll())
	assert.True(t, s.startPoll())

	// Several refreshes land mid-cycle.
	assert.False(t, s.requestPoll())
	assert.False(t, s.requestPoll())
	assert.False(t, s.requestPoll())

	assert.True(t, s.finishPollAndTakeNext(), "one follow-up cycle is promoted")
	assert.True(t, s.startPoll())
	assert.False(t, s.finishPollAndTakeNext(), "the queue held exactly one")
}

func TestPollStateStartWithoutRequest(t *testing.T) {
	var s pollState
	assert.False(t, s.startPoll())
}
