package tari

import (
	"strconv"
)

// Record is the canonical score record every upstream response shape is
// mapped into.
type Record struct {
	Username   string  `json:"username"`
	Avatar     *string `json:"avatar"`
	TotalScore int64   `json:"total_score"`
	Gems       int64   `json:"gems"`
	Shells     int64   `json:"shells"`
	Hammers    int64   `json:"hammers"`
	YatHolding int64   `json:"yat_holding"`
	Followers  int64   `json:"followers"`
	Rank       *string `json:"rank"`
}

// matcher inspects a decoded payload and either produces a canonical Record
// or reports no match.
type matcher func(payload map[string]any) (Record, bool)

// The upstream API has shipped several incompatible response shapes over
// time. Matchers are tried in order; first match wins. matchFlat always
// matches, so normalization never fails — worst case every numeric field
// resolves to 0.
var matchers = []matcher{
	matchCanonical,
	matchNestedRank,
	matchFlat,
}

// Normalize maps an arbitrary upstream payload into a canonical Record.
func Normalize(payload map[string]any) Record {
	for _, m := range matchers {
		if rec, ok := m(payload); ok {
			return rec
		}
	}
	return Record{Username: "Unknown"}
}

// matchCanonical handles payloads that already carry a top-level total_score.
func matchCanonical(payload map[string]any) (Record, bool) {
	if _, ok := payload["total_score"]; !ok {
		return Record{}, false
	}
	return flatRecord(payload), true
}

// matchNestedRank handles the shape with score metrics nested under
// user.rank, using camelCase source keys.
func matchNestedRank(payload map[string]any) (Record, bool) {
	user, ok := payload["user"].(map[string]any)
	if !ok {
		return Record{}, false
	}
	rank, ok := user["rank"].(map[string]any)
	if !ok {
		return Record{}, false
	}
	return Record{
		Username:   stringField(user, "display_name", "name"),
		Avatar:     optionalString(user, "image_url", "profileimageurl"),
		TotalScore: intField(rank, "totalScore"),
		Gems:       intField(rank, "gems"),
		Shells:     intField(rank, "shells"),
		Hammers:    intField(rank, "hammers"),
		YatHolding: intField(rank, "yatHolding"),
		Followers:  intField(rank, "followers"),
		Rank:       rankField(rank["rank"]),
	}, true
}

// matchFlat is the last-resort extraction over flat fields, accepting both
// snake_case and camelCase variants.
func matchFlat(payload map[string]any) (Record, bool) {
	return flatRecord(payload), true
}

func flatRecord(payload map[string]any) Record {
	return Record{
		Username:   stringField(payload, "username", "display_name", "name"),
		Avatar:     optionalString(payload, "avatar", "image_url", "profileimageurl"),
		TotalScore: intField(payload, "total_score", "totalScore"),
		Gems:       intField(payload, "gems"),
		Shells:     intField(payload, "shells"),
		Hammers:    intField(payload, "hammers"),
		YatHolding: intField(payload, "yat_holding", "yatHolding"),
		Followers:  intField(payload, "followers"),
		Rank:       rankField(payload["rank"]),
	}
}

// --------------------------------------------------------------------------
// Field extraction helpers
// --------------------------------------------------------------------------

// asInt64 coerces a decoded JSON value to int64. JSON numbers arrive as
// float64; some shapes send numerics as strings.
func asInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// intField returns the first extractable numeric among the given keys,
// defaulting to 0.
func intField(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if raw, ok := m[key]; ok {
			if n, ok := asInt64(raw); ok {
				return n
			}
		}
	}
	return 0
}

// stringField returns the first non-empty string among the given keys,
// defaulting to "Unknown".
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

// optionalString returns the first non-empty string among the given keys,
// or nil.
func optionalString(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// rankField normalizes a rank value to an ordinal string. Zero and empty
// values mean "unranked" and map to nil.
func rankField(val any) *string {
	switch v := val.(type) {
	case string:
		if v == "" {
			return nil
		}
		return &v
	case float64:
		if v == 0 {
			return nil
		}
		s := strconv.FormatInt(int64(v), 10)
		return &s
	default:
		return nil
	}
}
