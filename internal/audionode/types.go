package audionode

import (
	"encoding/json"
	"fmt"
	"time"
)

type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"` // milliseconds
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

func (i TrackInfo) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// Track is a node-encoded track plus its decoded info.
type Track struct {
	Encoded    string          `json:"encoded"`
	Info       TrackInfo       `json:"info"`
	PluginInfo json.RawMessage `json:"pluginInfo,omitempty"`
	UserData   json.RawMessage `json:"userData,omitempty"`
}

type LoadType string

const (
	LoadTrack    LoadType = "track"
	LoadPlaylist LoadType = "playlist"
	LoadSearch   LoadType = "search"
	LoadEmpty    LoadType = "empty"
	LoadError    LoadType = "error"
)

type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func (e *Exception) Error() string {
	if e == nil {
		return "unknown node exception"
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Severity)
}

// LoadResult is the decoded response of /v4/loadtracks.
type LoadResult struct {
	LoadType  LoadType
	Tracks    []Track
	Playlist  *PlaylistInfo
	Exception *Exception
}

type rawLoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

func (r *LoadResult) UnmarshalJSON(b []byte) error {
	var raw rawLoadResult
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.LoadType = raw.LoadType
	switch raw.LoadType {
	case LoadTrack:
		var t Track
		if err := json.Unmarshal(raw.Data, &t); err != nil {
			return fmt.Errorf("decode track: %w", err)
		}
		r.Tracks = []Track{t}
	case LoadSearch:
		if err := json.Unmarshal(raw.Data, &r.Tracks); err != nil {
			return fmt.Errorf("decode search: %w", err)
		}
	case LoadPlaylist:
		var pl struct {
			Info   PlaylistInfo `json:"info"`
			Tracks []Track      `json:"tracks"`
		}
		if err := json.Unmarshal(raw.Data, &pl); err != nil {
			return fmt.Errorf("decode playlist: %w", err)
		}
		r.Playlist = &pl.Info
		r.Tracks = pl.Tracks
	case LoadError:
		var ex Exception
		if err := json.Unmarshal(raw.Data, &ex); err != nil {
			return fmt.Errorf("decode exception: %w", err)
		}
		r.Exception = &ex
	}
	return nil
}

type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

type Stats struct {
	Players        int    `json:"players"`
	PlayingPlayers int    `json:"playingPlayers"`
	Uptime         int64  `json:"uptime"` // milliseconds
	Memory         Memory `json:"memory"`
	CPU            CPU    `json:"cpu"`
}

func (s Stats) UptimeDuration() time.Duration {
	return time.Duration(s.Uptime) * time.Millisecond
}

type Band struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

type Filters struct {
	Equalizer []Band `json:"equalizer"`
}

// VoiceState is the voice server information forwarded from the gateway.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (v VoiceState) Complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

type updateTrack struct {
	Encoded *string `json:"encoded"`
}

// PlayerUpdate is the body of PATCH /v4/sessions/{session}/players/{guild}.
type PlayerUpdate struct {
	Track    *updateTrack `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	EndTime  *int64       `json:"endTime,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Filters  *Filters     `json:"filters,omitempty"`
	Voice    *VoiceState  `json:"voice,omitempty"`
}

// PlayRequest starts a track, optionally trimmed, with the player's current mix.
type PlayRequest struct {
	Encoded string
	Start   time.Duration
	End     time.Duration // zero plays to the natural end
	Volume  int
	Paused  bool
	Bands   []Band
}

func (r PlayRequest) update() PlayerUpdate {
	enc := r.Encoded
	vol := r.Volume
	paused := r.Paused
	u := PlayerUpdate{
		Track:  &updateTrack{Encoded: &enc},
		Volume: &vol,
		Paused: &paused,
	}
	if r.Start > 0 {
		pos := r.Start.Milliseconds()
		u.Position = &pos
	}
	if r.End > 0 {
		end := r.End.Milliseconds()
		u.EndTime = &end
	}
	if r.Bands != nil {
		u.Filters = &Filters{Equalizer: r.Bands}
	}
	return u
}
