package vitals

import "time"

const daysPerWeek = 7

// ActivityRecord is one day of activity history.
type ActivityRecord struct {
	Date          time.Time `json:"date"`
	ActiveMinutes float64   `json:"active_minutes"`
}

// WeeklyAverage is the mean daily active minutes over one 7-day bucket.
type WeeklyAverage struct {
	WeekStart  time.Time `json:"week_start"`
	AvgMinutes float64   `json:"avg_minutes"`
	Days       int       `json:"days"`
}

// WeeklyAverages buckets records into consecutive 7-day weeks starting at the
// first record. Records must be in date order. A trailing partial week is
// returned with Days < 7.
func WeeklyAverages(records []ActivityRecord) []WeeklyAverage {
	out := make([]WeeklyAverage, 0, (len(records)+daysPerWeek-1)/daysPerWeek)
	for i := 0; i < len(records); i += daysPerWeek {
		end := min(i+daysPerWeek, len(records))
		var sum float64
		for _, r := range records[i:end] {
			sum += r.ActiveMinutes
		}
		out = append(out, WeeklyAverage{
			WeekStart:  records[i].Date,
			AvgMinutes: sum / float64(end-i),
			Days:       end - i,
		})
	}
	return out
}

// LatestCompleteWeek returns the most recent 7-day average. A history with no
// complete week reports false and the activity vital is a gap.
func LatestCompleteWeek(weeks []WeeklyAverage) (float64, bool) {
	for i := len(weeks) - 1; i >= 0; i-- {
		if weeks[i].Days == daysPerWeek {
			return weeks[i].AvgMinutes, true
		}
	}
	return 0, false
}
