// Package policy defines the cache's expiry and size partitions.
//
// Each bucket pairs a time-to-live with a dedicated on-disk folder and a
// default byte budget. The catalog is fixed at compile time; only the byte
// budgets are overridable at engine construction.
package policy

import "time"

// Bucket identifies one TTL and byte-budget partition of the cache.
type Bucket int

const (
	// Hour caches entries for one hour.
	Hour Bucket = iota

	// FourHours caches entries for four hours.
	FourHours

	// Day caches entries for one day.
	Day

	// Week caches entries for one week.
	Week

	// Month caches entries for roughly one month.
	Month

	// UntilSpaceNeeded caches entries for about a year, evicting only
	// under byte-budget pressure.
	UntilSpaceNeeded

	// DoNotCache is a sentinel meaning "never persist". It has no folder
	// and no budget and is excluded from every store, load, and trim
	// operation.
	DoNotCache
)

const (
	megabyte = 1 << 20
	gigabyte = 1 << 30
)

// catalog holds the per-bucket constants. DoNotCache deliberately has no row.
var catalog = map[Bucket]struct {
	name     string
	ttl      time.Duration
	folder   string
	maxBytes uint64
}{
	Hour:             {"hour", 3600 * time.Second, "HourCache", 50 * megabyte},
	FourHours:        {"four-hours", 14400 * time.Second, "FourHourCache", 100 * megabyte},
	Day:              {"day", 86400 * time.Second, "DayCache", 250 * megabyte},
	Week:             {"week", 604800 * time.Second, "WeekCache", 500 * megabyte},
	Month:            {"month", 2721600 * time.Second, "MonthCache", 1 * gigabyte},
	UntilSpaceNeeded: {"until-space-needed", 32659200 * time.Second, "UntilSpaceNeededCache", 1 * gigabyte},
}

// Buckets returns every non-sentinel bucket in declaration order. The slice
// is freshly allocated and safe to mutate.
func Buckets() []Bucket {
	return []Bucket{Hour, FourHours, Day, Week, Month, UntilSpaceNeeded}
}

// Cacheable reports whether entries may be persisted under this bucket.
func (b Bucket) Cacheable() bool {
	_, ok := catalog[b]
	return ok
}

// TTL returns the bucket's time-to-live. DoNotCache and unknown buckets
// return 0.
func (b Bucket) TTL() time.Duration {
	return catalog[b].ttl
}

// Folder returns the bucket's folder name under the cache root. DoNotCache
// and unknown buckets return "".
func (b Bucket) Folder() string {
	return catalog[b].folder
}

// DefaultMaxBytes returns the bucket's default byte budget. DoNotCache and
// unknown buckets return 0.
func (b Bucket) DefaultMaxBytes() uint64 {
	return catalog[b].maxBytes
}

// String implements fmt.Stringer.
func (b Bucket) String() string {
	if entry, ok := catalog[b]; ok {
		return entry.name
	}
	if b == DoNotCache {
		return "do-not-cache"
	}
	return "unknown"
}
