package models

import (
	"fmt"
	"time"
)

// Item is an opaque reference to a catalog track.
type Item struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Duration time.Duration `json:"duration"`
	Artwork  string        `json:"artwork,omitempty"`
	URI      string        `json:"uri,omitempty"` // Transport handle, e.g. spotify:track:...
}

func (i Item) String() string {
	return fmt.Sprintf("%s - %s", i.Artist, i.Title)
}

// Contributor identifies which actor added an entry.
type Contributor string

const (
	Human     Contributor = "human"
	Automated Contributor = "automated"
)

// Status is the lifecycle state of a [LedgerEntry].
//
// Queue entries are [UpNext] or [Backup]; history entries are [Playing] or [Played].
type Status string

const (
	UpNext  Status = "up_next"
	Backup  Status = "backup"
	Playing Status = "playing"
	Played  Status = "played"
)

// Queued reports whether the status belongs to a queue entry.
func (s Status) Queued() bool {
	return s == UpNext || s == Backup
}

// LedgerEntry is one contribution to the session.
type LedgerEntry struct {
	ID            string      `json:"id"`
	Item          Item        `json:"item"`
	ContributedBy Contributor `json:"contributed_by"`
	CreatedAt     time.Time   `json:"created_at"`
	Rationale     string      `json:"rationale,omitempty"`
	Status        Status      `json:"status"`
}

// Recommendation is a track proposed by the recommendation service, described in free text.
type Recommendation struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Rationale string `json:"rationale"`
	Model     string `json:"model,omitempty"`
	Tier      string `json:"tier,omitempty"` // Reasoning tier used to produce it
}

func (r Recommendation) String() string {
	return fmt.Sprintf("%s - %s", r.Artist, r.Title)
}

// MatchResult is the outcome of resolving a [Recommendation] against catalog candidates.
type MatchResult struct {
	Item        *Item   `json:"item,omitempty"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Matcher     string  `json:"matcher"`
}

// Found reports whether a candidate was selected.
func (m MatchResult) Found() bool {
	return m.Item != nil
}

// Turn is whose turn it is, derived from the last history entry.
type Turn int

const (
	TurnHuman Turn = iota
	TurnAutomated
	TurnHumanWithBackup
)

func (t Turn) String() string {
	switch t {
	case TurnHuman:
		return "human"
	case TurnAutomated:
		return "automated"
	case TurnHumanWithBackup:
		return "human_with_backup"
	default:
		return ""
	}
}

// ConfidenceLevel is the coarse confidence reported by the semantic matching service.
type ConfidenceLevel string

const (
	ConfidenceHigh        ConfidenceLevel = "high"
	ConfidenceMedium      ConfidenceLevel = "medium"
	ConfidenceLow         ConfidenceLevel = "low"
	ConfidenceUnspecified ConfidenceLevel = ""
)

// Score maps the level onto [0,1].
func (c ConfidenceLevel) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceMedium:
		return 0.7
	case ConfidenceLow:
		return 0.5
	default:
		return 0.6
	}
}

// PlaybackState is what the playback transport reports for the current item.
type PlaybackState struct {
	ItemID    string
	Position  time.Duration
	Duration  time.Duration
	IsPlaying bool
}

// Progress returns Position/Duration, or 0 when the duration is unknown.
func (p PlaybackState) Progress() float64 {
	if p.Duration <= 0 {
		return 0
	}
	return float64(p.Position) / float64(p.Duration)
}
