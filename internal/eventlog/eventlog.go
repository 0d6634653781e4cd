// Package eventlog implements bounded, timestamp-ordered event logs.
//
// Logs are plain slices owned by the record that stores them. Every function in
// this package is pure: it returns a new slice (or map) and never mutates its
// input, so callers can swap the result into a record as part of a single upsert.
package eventlog

import (
	"cmp"
	"slices"
	"sort"
	"time"
)

// Timestamped is implemented by every entry stored in a bounded log.
// EventTime returns the entry's timestamp in Unix milliseconds.
type Timestamped interface {
	EventTime() int64
}

// Policy bounds a log. A zero field disables that bound.
type Policy struct {
	// MaxCount keeps only the MaxCount most recent entries.
	MaxCount int
	// MaxAge drops entries older than now-MaxAge. Eviction happens on append
	// only, so an idle log keeps its stale entries until the next write.
	MaxAge time.Duration
}

// Append returns log with entry added and the policy applied, evaluated at now.
func Append[E Timestamped](log []E, entry E, p Policy, now time.Time) []E {
	out := make([]E, 0, len(log)+1)
	out = append(out, log...)
	out = append(out, entry)
	return Apply(out, p, now)
}

// Apply returns a copy of log holding only the entries retained under p.
// Entries are ordered by timestamp; entries with equal timestamps keep their
// original relative order.
func Apply[E Timestamped](log []E, p Policy, now time.Time) []E {
	out := make([]E, 0, len(log))
	if p.MaxAge > 0 {
		cutoff := now.UnixMilli() - p.MaxAge.Milliseconds()
		for _, e := range log {
			if e.EventTime() >= cutoff {
				out = append(out, e)
			}
		}
	} else {
		out = append(out, log...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventTime() < out[j].EventTime()
	})

	if p.MaxCount > 0 && len(out) > p.MaxCount {
		out = out[len(out)-p.MaxCount:]
	}
	return out
}

// Latest returns the newest timestamp in log, or 0 for an empty log.
func Latest[E Timestamped](log []E) int64 {
	var latest int64
	for _, e := range log {
		if t := e.EventTime(); t > latest {
			latest = t
		}
	}
	return latest
}

// AppendKeyed adds entry to the sub-log stored under key and bounds the result.
//
// The addressed sub-log is bounded by perLog. Then, if more than maxKeys sub-logs
// remain, whole sub-logs are evicted oldest first, where a sub-log's age is the
// timestamp of its newest entry; ties are evicted in ascending key order.
// A maxKeys of zero or less disables the cross-log bound.
func AppendKeyed[K cmp.Ordered, E Timestamped](logs map[K][]E, key K, entry E, perLog Policy, maxKeys int, now time.Time) map[K][]E {
	out := make(map[K][]E, len(logs)+1)
	for k, l := range logs {
		out[k] = l
	}
	out[key] = Append(out[key], entry, perLog, now)

	if maxKeys <= 0 || len(out) <= maxKeys {
		return out
	}

	keys := make([]K, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b K) int {
		if c := cmp.Compare(Latest(out[a]), Latest(out[b])); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, k := range keys[:len(keys)-maxKeys] {
		delete(out, k)
	}
	return out
}
