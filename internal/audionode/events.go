package audionode

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventReady           EventType = "ready"
	EventPlayerUpdate    EventType = "playerUpdate"
	EventStats           EventType = "stats"
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether the node expects the client to continue the queue.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// Event is a decoded websocket message scoped to one guild player.
type Event struct {
	Type      EventType
	GuildID   string
	Track     *Track
	Reason    EndReason
	Exception *Exception
	Threshold time.Duration

	// playerUpdate
	Position  time.Duration
	Connected bool

	// WebSocketClosedEvent
	Code     int
	ByRemote bool
	Message  string
}

type wsMessage struct {
	Op        string          `json:"op"`
	Type      EventType       `json:"type"`
	GuildID   string          `json:"guildId"`
	SessionID string          `json:"sessionId"`
	Resumed   bool            `json:"resumed"`
	Track     *Track          `json:"track"`
	Reason    json.RawMessage `json:"reason"`
	Exception *Exception      `json:"exception"`
	Threshold int64           `json:"thresholdMs"`
	Code      int             `json:"code"`
	ByRemote  bool            `json:"byRemote"`
	State     struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int64 `json:"ping"`
	} `json:"state"`
}

type frame struct {
	op      string
	session string
	resumed bool
	stats   *Stats
	event   *Event
}

func decodeFrame(b []byte) (frame, error) {
	var m wsMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return frame{}, err
	}
	f := frame{op: m.Op}
	switch m.Op {
	case "ready":
		f.session = m.SessionID
		f.resumed = m.Resumed
	case "stats":
		var s Stats
		if err := json.Unmarshal(b, &s); err != nil {
			return frame{}, fmt.Errorf("decode stats: %w", err)
		}
		f.stats = &s
	case "playerUpdate":
		f.event = &Event{
			Type:      EventPlayerUpdate,
			GuildID:   m.GuildID,
			Position:  time.Duration(m.State.Position) * time.Millisecond,
			Connected: m.State.Connected,
		}
	case "event":
		ev := &Event{
			Type:      m.Type,
			GuildID:   m.GuildID,
			Track:     m.Track,
			Exception: m.Exception,
			Threshold: time.Duration(m.Threshold) * time.Millisecond,
			Code:      m.Code,
			ByRemote:  m.ByRemote,
		}
		// reason is an end reason for TrackEndEvent and free text for WebSocketClosedEvent
		if len(m.Reason) > 0 {
			var s string
			if err := json.Unmarshal(m.Reason, &s); err == nil {
				if m.Type == EventWebSocketClosed {
					ev.Message = s
				} else {
					ev.Reason = EndReason(s)
				}
			}
		}
		f.event = ev
	default:
		return frame{}, fmt.Errorf("unknown op %q", m.Op)
	}
	return f, nil
}
