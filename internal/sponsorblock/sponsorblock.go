package sponsorblock

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

const DefaultBaseURL = "https://sponsor.ajay.app/api/skipSegments"

// ErrUnavailable is returned when the service answers 504; callers back off.
var ErrUnavailable = errors.New("sponsorblock unavailable")

type Segment struct {
	Category   string     `json:"category"`
	Segment    [2]float64 `json:"segment"` // [start, end] seconds
	UUID       string     `json:"UUID"`
	ActionType string     `json:"actionType"`
}

func (s Segment) Start() time.Duration { return seconds(s.Segment[0]) }
func (s Segment) End() time.Duration   { return seconds(s.Segment[1]) }

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

type Client struct {
	http *http.Client
	base string
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: &http.Client{Timeout: 8 * time.Second},
		base: baseURL,
	}
}

// GetSegments fetches segments of the given categories for a YouTube video id.
func (c *Client) GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("videoID", videoID)
	for _, cat := range categories {
		q.Add("categories", cat)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// no segments for this video
		return []Segment{}, nil
	case http.StatusGatewayTimeout:
		return nil, ErrUnavailable
	default:
		return nil, fmt.Errorf("sponsorblock: http %d", resp.StatusCode)
	}
	var segs []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// MergeSegments sorts segments by start and joins overlapping ones.
func MergeSegments(segs []Segment) []Segment {
	slices.SortFunc(segs, func(a, b Segment) int {
		return cmp.Compare(a.Segment[0], b.Segment[0])
	})
	var out []Segment
	for _, s := range segs {
		if n := len(out); n > 0 && s.Segment[0] <= out[n-1].Segment[1] {
			out[n-1].Segment[1] = max(out[n-1].Segment[1], s.Segment[1])
			continue
		}
		out = append(out, s)
	}
	return out
}
