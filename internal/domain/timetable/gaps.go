package timetable

// MinGapMinutes is the idle interval between nominally consecutive pairs
// that still counts as a gap worth a separate reminder.
const MinGapMinutes = 40

// GapFlags reports, for each lesson of one day's schedule, whether it
// follows a gap: either at least one pair ordinal is skipped before it, or
// the previous pair ends MinGapMinutes or more before this one starts.
//
// The predecessor of a lesson is the lesson with the largest ordinal
// strictly below its own — pair numbers may skip (1,2,4), so this is not
// always the previous slice element. A lesson with no predecessor (the
// day's first, or a day whose record starts mid-sequence) is never flagged.
func GapFlags(day []Lesson) []bool {
	flags := make([]bool, len(day))
	for i, cur := range day {
		prev := -1
		for j, cand := range day {
			if cand.Number >= cur.Number {
				continue
			}
			if prev < 0 || cand.Number > day[prev].Number {
				prev = j
			}
		}
		if prev < 0 {
			continue
		}
		switch skip := cur.Number - day[prev].Number; {
		case skip > 1:
			flags[i] = true
		case cur.TimeStart.MinutesSince(day[prev].TimeEnd) >= MinGapMinutes:
			flags[i] = true
		}
	}
	return flags
}
