package analytics

import (
	"errors"
	"time"
)

// Timestamped is anything with a point-in-time, letting the same bucketing
// serve cases, appointments, and exercise completions alike.
type Timestamped interface {
	Timestamp() time.Time
}

// Granularity of a series' buckets.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// maxDailyWindowDays is the widest window (inclusive calendar days) that
// still buckets by day; wider windows bucket by month. Fixed by design, not
// configurable.
const maxDailyWindowDays = 31

// Bucket is one time slot in a series. Buckets are always emitted, count 0
// included, so charts render without gaps.
type Bucket struct {
	Label     string `json:"label"`     // short axis label, e.g. "Jan 2" or "Jan"
	FullLabel string `json:"fullLabel"` // tooltip label, e.g. "Jan 2, 2026" or "January 2026"
	Count     int    `json:"count"`
}

// Series is a chart-ready aggregation: dense chronological buckets plus a
// running average consumers render as a reference line.
type Series struct {
	Buckets     []Bucket    `json:"buckets"`
	Average     float64     `json:"average"` // total count / bucket count, 0 when no buckets
	Granularity Granularity `json:"granularity"`
}

// ErrInvalidRange is returned when the end of a window precedes its start.
var ErrInvalidRange = errors.New("end of range precedes start")

// BucketRange groups records into calendar buckets across [start, end]
// inclusive. Windows spanning up to 31 calendar days bucket by day, wider
// windows by month. Membership is decided at day granularity in each
// timestamp's own location.
func BucketRange(records []Timestamped, start, end time.Time) (*Series, error) {
	startDay := dayOf(start)
	endDay := dayOf(end)
	if endDay.Before(startDay) {
		return nil, ErrInvalidRange
	}

	windowDays := int(endDay.Sub(startDay)/(24*time.Hour)) + 1

	days := make([]time.Time, 0, len(records))
	for _, rec := range records {
		d := dayOf(rec.Timestamp())
		if d.Before(startDay) || d.After(endDay) {
			continue
		}
		days = append(days, d)
	}

	if windowDays <= maxDailyWindowDays {
		return bucketByDay(days, startDay, endDay), nil
	}
	return bucketByMonth(days, startDay, endDay), nil
}

func bucketByDay(days []time.Time, startDay, endDay time.Time) *Series {
	var buckets []Bucket
	total := 0
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		count := 0
		for _, rd := range days {
			if rd.Equal(d) {
				count++
			}
		}
		total += count
		buckets = append(buckets, Bucket{
			Label:     d.Format("Jan 2"),
			FullLabel: d.Format("Jan 2, 2006"),
			Count:     count,
		})
	}
	return &Series{
		Buckets:     buckets,
		Average:     average(total, len(buckets)),
		Granularity: GranularityDay,
	}
}

func bucketByMonth(days []time.Time, startDay, endDay time.Time) *Series {
	var buckets []Bucket
	total := 0
	first := time.Date(startDay.Year(), startDay.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(endDay.Year(), endDay.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		count := 0
		for _, rd := range days {
			if rd.Year() == m.Year() && rd.Month() == m.Month() {
				count++
			}
		}
		total += count
		buckets = append(buckets, Bucket{
			Label:     m.Format("Jan"),
			FullLabel: m.Format("January 2006"),
			Count:     count,
		})
	}
	return &Series{
		Buckets:     buckets,
		Average:     average(total, len(buckets)),
		Granularity: GranularityMonth,
	}
}

func average(total, buckets int) float64 {
	if buckets == 0 {
		return 0
	}
	return float64(total) / float64(buckets)
}

// dayOf collapses a timestamp to its calendar day in its own location,
// anchored at midnight UTC so day arithmetic is uniform.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Instant adapts a bare timestamp to Timestamped.
type Instant time.Time

func (i Instant) Timestamp() time.Time { return time.Time(i) }

// FromTimes wraps raw timestamps for bucketing.
func FromTimes(ts []time.Time) []Timestamped {
	records := make([]Timestamped, len(ts))
	for i, t := range ts {
		records[i] = Instant(t)
	}
	return records
}
