package service

import (
	"time"

	"signagehub/internal/model"
)

// SelectActiveSchedule returns the schedule that governs a display at now, evaluated
// in loc, or nil when none applies. Rows failing Schedule.Validate are skipped.
// A schedule matches when it is active, its day of
// week or inclusive date range contains the local date, and its [start, end) window
// contains the local time. Windows with end <= start never match.
//
// Highest priority wins. Equal priorities go to the most recently created schedule,
// then to the lowest id, so the result never depends on input order.
func SelectActiveSchedule(schedules []model.Schedule, now time.Time, loc *time.Location) *model.Schedule {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	weekday := int(local.Weekday())
	today := local.Format(model.DateLayout)
	timeOfDay := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second

	var best *model.Schedule
	for i := range schedules {
		s := &schedules[i]
		if !s.IsActive || s.Validate() != nil || !matchesDay(s, weekday, today) || !matchesWindow(s, timeOfDay) {
			continue
		}
		if best == nil || outranks(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	winner := *best
	return &winner
}

func matchesDay(s *model.Schedule, weekday int, today string) bool {
	if s.DayOfWeek != nil && *s.DayOfWeek != weekday {
		return false
	}
	if s.StartDate != nil && today < *s.StartDate {
		return false
	}
	if s.EndDate != nil && today > *s.EndDate {
		return false
	}
	return true
}

func matchesWindow(s *model.Schedule, timeOfDay time.Duration) bool {
	// both parse; Validate ran first
	start, _ := model.ParseTimeOfDay(s.StartTime)
	end, _ := model.ParseTimeOfDay(s.EndTime)
	return timeOfDay >= start && timeOfDay < end
}

func outranks(a, b *model.Schedule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
