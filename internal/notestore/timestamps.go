package notestore

import "time"

// Core Data stores timestamps as float seconds from its own reference date,
// not the Unix epoch.
var coreDataEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// timeFromCoreData converts a stored offset to a time. Some records carry 0
// or a sub-second placeholder where a real timestamp was never written;
// those decode as "now" instead of a bogus date in 2001.
func timeFromCoreData(seconds float64) time.Time {
	if seconds < 1 {
		return time.Now()
	}
	return coreDataEpoch.Add(time.Duration(seconds * float64(time.Second)))
}

// creationTime picks the creation timestamp from the three candidate fields
// the format has accumulated over the years. The most recent variant wins
// when it is non-zero: v3 over v2 over v1.
func creationTime(v1, v2, v3 float64) time.Time {
	switch {
	case v3 != 0:
		return timeFromCoreData(v3)
	case v2 != 0:
		return timeFromCoreData(v2)
	default:
		return timeFromCoreData(v1)
	}
}
