package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Sport is the league code attached to every player record
type Sport string

const (
	SportNBA Sport = "NBA"
	SportNFL Sport = "NFL"
	SportMLB Sport = "MLB"
)

// KnownSports lists every league code in its default declared order
var KnownSports = []Sport{SportNBA, SportNFL, SportMLB}

// ParseSport normalizes a league code ("nba", " NBA ") and reports whether it is known
func ParseSport(s string) (Sport, bool) {
	sport := Sport(strings.ToUpper(strings.TrimSpace(s)))
	if !sport.IsKnown() {
		return "", false
	}
	return sport, true
}

// IsKnown reports whether the sport is exactly one of the supported league codes
func (s Sport) IsKnown() bool {
	for _, known := range KnownSports {
		if s == known {
			return true
		}
	}
	return false
}

// FeedKey returns the sport key used for stream and cache names across fortuna services
func (s Sport) FeedKey() string {
	switch s {
	case SportNBA:
		return "basketball_nba"
	case SportNFL:
		return "americanfootball_nfl"
	case SportMLB:
		return "baseball_mlb"
	default:
		return strings.ToLower(string(s))
	}
}

// keySeparator joins sport and id in a composite key
const keySeparator = "_"

// CompositeKey builds the globally unique key for a record: "NBA_jamesle01"
func CompositeKey(sport Sport, id string) string {
	return string(sport) + keySeparator + id
}

// ParseCompositeKey splits a composite key into its sport and bare id.
// Keys whose prefix is not a known sport code are not composite keys.
func ParseCompositeKey(key string) (Sport, string, bool) {
	prefix, id, found := strings.Cut(key, keySeparator)
	if !found || id == "" {
		return "", "", false
	}
	sport := Sport(prefix)
	if !sport.IsKnown() {
		return "", "", false
	}
	return sport, id, true
}

// PlayerRecord is one athlete from a sport's static data set
type PlayerRecord struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Sport              Sport              `json:"sport"`
	Team               string             `json:"team"`
	Position           string             `json:"position"`
	Number             JerseyNumber       `json:"number"`
	PhotoURL           string             `json:"photoUrl,omitempty"`
	SportsReferenceURL string             `json:"sportsReferenceUrl,omitempty"`
	Stats              map[string]float64 `json:"stats,omitempty"`
	HallOfFame         bool               `json:"hallOfFame,omitempty"`
}

// Key returns the record's composite key
func (p PlayerRecord) Key() string {
	return CompositeKey(p.Sport, p.ID)
}

// Clone returns a copy of p that shares no maps with it
func (p PlayerRecord) Clone() PlayerRecord {
	p.Stats = maps.Clone(p.Stats)
	return p
}

// SearchText is the haystack matched by substring search
func (p PlayerRecord) SearchText() string {
	return p.Name + " " + p.Team + " " + p.Position
}

// JerseyNumber accepts either a JSON string or number and always encodes as a string.
// Some league exports write "23", others 23.
type JerseyNumber string

// UnmarshalJSON implements json.Unmarshaler
func (n *JerseyNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = JerseyNumber(s)
		return nil
	}

	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("jersey number must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(f.String(), 10, 64); err == nil {
		*n = JerseyNumber(strconv.FormatInt(i, 10))
		return nil
	}
	*n = JerseyNumber(f.String())
	return nil
}

// PlayerRef is a persisted reference to a catalog record, as stored by list storage.
// PlayerID may be a bare id or a composite key; Sport is absent on older references.
type PlayerRef struct {
	PlayerID string `json:"player_id"`
	Sport    Sport  `json:"sport,omitempty"`
}

// ResolveResult is the outcome of resolving a batch of persisted references
type ResolveResult struct {
	Players       []PlayerRecord `json:"players"`
	Missing       []PlayerRef    `json:"missing"`
	DominantSport *Sport         `json:"dominant_sport"`
}
