package player

import (
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

// Track is one queued instance of a node track. The same song queued twice yields two Tracks.
type Track struct {
	ID          uuid.UUID
	Encoded     string
	Info        audionode.TrackInfo
	RequesterID string
	ChannelID   string
	// Start and End trim the track; zero means untrimmed.
	Start time.Duration
	End   time.Duration
}

func NewTrack(t audionode.Track, requesterID, channelID string) *Track {
	return &Track{
		ID:          uuid.New(),
		Encoded:     t.Encoded,
		Info:        t.Info,
		RequesterID: requesterID,
		ChannelID:   channelID,
	}
}

func (t *Track) Title() string { return t.Info.Title }

func (t *Track) Duration() time.Duration { return t.Info.Duration() }

func (t *Track) IsStream() bool { return t.Info.IsStream }

func (t *Track) Seekable() bool { return t.Info.IsSeekable && !t.Info.IsStream }

func (t *Track) playRequest(volume int, bands []audionode.Band) audionode.PlayRequest {
	return audionode.PlayRequest{
		Encoded: t.Encoded,
		Start:   t.Start,
		End:     t.End,
		Volume:  volume,
		Bands:   bands,
	}
}
