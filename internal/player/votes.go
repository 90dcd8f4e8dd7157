package player

import "sync"

// Action is a control command that ordinary listeners must vote on.
type Action string

const (
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionStop    Action = "stop"
	ActionShuffle Action = "shuffle"
	ActionSkip    Action = "skip"
	ActionRepeat  Action = "repeat"
)

var GatedActions = []Action{ActionPause, ActionResume, ActionStop, ActionShuffle, ActionSkip, ActionRepeat}

func (a Action) endsTrack() bool { return a == ActionSkip || a == ActionStop }

// NeedsTrack reports whether the action only makes sense while a track is loaded.
func (a Action) NeedsTrack() bool {
	switch a {
	case ActionPause, ActionResume, ActionSkip, ActionRepeat:
		return true
	}
	return false
}

type Outcome int

const (
	// OutcomeExecute means the caller must run the action now.
	OutcomeExecute Outcome = iota
	OutcomeRecorded
	OutcomeAlreadyVoted
	// OutcomeIgnored is returned for skip and stop votes after either passed for the current track.
	OutcomeIgnored
)

type Vote struct {
	Outcome  Outcome
	Votes    int
	Required int
}

// Err maps a non-executing vote to the error reported to the voter.
func (v Vote) Err(a Action) error {
	switch v.Outcome {
	case OutcomeRecorded:
		return &VoteError{Action: a, Votes: v.Votes, Required: v.Required}
	case OutcomeAlreadyVoted:
		return ErrAlreadyVoted
	}
	return nil
}

// RequiredVotes is ceil(members / 2.5); stopping with two listeners needs both.
func RequiredVotes(a Action, members int) int {
	if a == ActionStop && members == 2 {
		return 2
	}
	return (2*members + 4) / 5
}

// VoteCoordinator tracks who voted for which action since the last track transition.
type VoteCoordinator struct {
	mu     sync.Mutex
	sets   map[Action]map[string]struct{}
	passed bool
}

func NewVoteCoordinator() *VoteCoordinator {
	v := &VoteCoordinator{}
	v.resetLocked()
	return v
}

func (v *VoteCoordinator) resetLocked() {
	v.sets = make(map[Action]map[string]struct{}, len(GatedActions))
	for _, a := range GatedActions {
		v.sets[a] = map[string]struct{}{}
	}
	v.passed = false
}

// Reset clears every vote set.
func (v *VoteCoordinator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
}

// Cast records userID's vote for a. members is the non-bot listener count of the voice channel.
func (v *VoteCoordinator) Cast(a Action, userID string, members int) Vote {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.passed && a.endsTrack() {
		return Vote{Outcome: OutcomeIgnored}
	}
	set := v.sets[a]
	if members < 3 && a != ActionStop {
		clear(set)
		return Vote{Outcome: OutcomeExecute, Votes: 1, Required: 1}
	}
	required := RequiredVotes(a, members)
	if _, ok := set[userID]; ok {
		return Vote{Outcome: OutcomeAlreadyVoted, Votes: len(set), Required: required}
	}
	set[userID] = struct{}{}
	votes := len(set)
	if votes < required {
		return Vote{Outcome: OutcomeRecorded, Votes: votes, Required: required}
	}
	clear(set)
	if a.endsTrack() {
		v.passed = true
	}
	return Vote{Outcome: OutcomeExecute, Votes: votes, Required: required}
}

// Count returns the current number of votes for a.
func (v *VoteCoordinator) Count(a Action) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sets[a])
}
