// Package featureflags evaluates rollout switches parsed from FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// FeedEvents gates publishing of feed mutation events.
const FeedEvents = "feed_events"

type rule struct {
	raw     string
	percent int // 0-100; only meaningful when raw ends in %
}

// Manager evaluates flags defined as a comma-separated key=value list.
// Example: "feed_events=on,new_feed=25%,legacy_ui=off"
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		r := rule{raw: value, percent: -1}
		if pct, found := strings.CutSuffix(value, "%"); found {
			if n, err := strconv.Atoi(pct); err == nil {
				r.percent = min(max(n, 0), 100)
			}
		}
		rules[key] = r
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Values on/true/1 and
// off/false/0 apply to everyone; N% enables a stable N percent of
// authenticated users and nobody anonymous.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}

	switch r.raw {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	default:
		return bucket(name, userID) < r.percent
	}
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
