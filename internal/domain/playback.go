package domain

import "fmt"

type Rate float64

var SupportedRates = []Rate{1.0, 1.25, 1.5, 1.75, 2.0}

func ParseRate(v float64) (Rate, error) {
	for _, r := range SupportedRates {
		if float64(r) == v {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedRate, v)
}

// NextRate returns the speed after r in SupportedRates, wrapping around.
func NextRate(r Rate) Rate {
	for i, s := range SupportedRates {
		if s == r {
			return SupportedRates[(i+1)%len(SupportedRates)]
		}
	}
	return SupportedRates[0]
}

type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackLoading PlaybackState = "loading"
	PlaybackReady   PlaybackState = "ready"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackEnded   PlaybackState = "ended"
	PlaybackError   PlaybackState = "error"
)

// PlaybackSession is a point-in-time view of one open player.
type PlaybackSession struct {
	ID              string        `json:"id"`
	PodcastID       string        `json:"podcastId"`
	State           PlaybackState `json:"state"`
	PositionSeconds float64       `json:"positionSeconds"`
	DurationSeconds float64       `json:"durationSeconds"`
	IsPlaying       bool          `json:"isPlaying"`
	Rate            Rate          `json:"rate"`
	Elapsed         string        `json:"elapsed"`
	Total           string        `json:"total"`
	Error           string        `json:"error,omitempty"`
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
