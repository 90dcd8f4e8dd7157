package player

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("not connected to a voice channel")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAudioNode        = errors.New("audio node failure")
	ErrDelivery         = errors.New("controller delivery failure")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrVolumeRange      = errors.New("volume must be between 0 and 100")
	ErrSeekRange        = errors.New("position is outside the track")
	ErrNotSeekable      = errors.New("track is not seekable")
	ErrUnknownEqualizer = errors.New("unknown equalizer preset")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrDestroyed        = errors.New("player destroyed")
)

// VoteError reports a recorded vote that has not reached quorum yet.
type VoteError struct {
	Action   Action
	Votes    int
	Required int
}

func (e *VoteError) Error() string {
	return fmt.Sprintf("%s vote recorded, %d more needed", e.Action, e.Remaining())
}

func (e *VoteError) Remaining() int {
	if n := e.Required - e.Votes; n > 0 {
		return n
	}
	return 0
}

func (e *VoteError) Unwrap() error { return ErrPermissionDenied }

func nodeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAudioNode, err)
}
