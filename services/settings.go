package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"committeehub/models"
)

// SettingsPatch is a partial settings update. Nil fields are left as they are.
// MinSpeakersBeforeVote carries the raw decoded JSON value because clients
// send numbers, numeric strings and garbage alike.
type SettingsPatch struct {
	OfflineMode           *bool `json:"offlineMode"`
	MinSpeakersBeforeVote any   `json:"minSpeakersBeforeVote"`
	RecordNamesInVotes    *bool `json:"recordNamesInVotes"`
	AllowSpecialMotions   *bool `json:"allowSpecialMotions"`
}

// MergeSettings applies incoming over current, or over the defaults when the
// committee has never stored settings.
func MergeSettings(current *models.CommitteeSettings, incoming SettingsPatch) models.CommitteeSettings {
	merged := models.DefaultSettings()
	if current != nil {
		merged = *current
	}
	if incoming.OfflineMode != nil {
		merged.OfflineMode = *incoming.OfflineMode
	}
	if incoming.RecordNamesInVotes != nil {
		merged.RecordNamesInVotes = *incoming.RecordNamesInVotes
	}
	if incoming.AllowSpecialMotions != nil {
		merged.AllowSpecialMotions = *incoming.AllowSpecialMotions
	}
	value := float64(merged.MinSpeakersBeforeVote)
	if v, ok := numericValue(incoming.MinSpeakersBeforeVote); ok {
		value = v
	}
	merged.MinSpeakersBeforeVote = clampSpeakers(value)
	return merged
}

func numericValue(raw any) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case nil:
		return 0, false
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clampSpeakers(v float64) int {
	v = math.Floor(v)
	if v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
