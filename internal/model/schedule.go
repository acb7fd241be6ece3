package model

import (
	"errors"
	"fmt"
	"time"
)

// Schedule links a playlist to a display for a recurring local time window.
// Either DayOfWeek or the StartDate/EndDate range selects the days it applies to.
type Schedule struct {
	ID         string    `db:"id" json:"id"`
	SeriesID   string    `db:"series_id" json:"seriesId"`
	PlaylistID string    `db:"playlist_id" json:"playlistId"`
	DisplayID  string    `db:"display_id" json:"displayId"`
	StartTime  string    `db:"start_time" json:"startTime"` // HH:MM or HH:MM:SS, local
	EndTime    string    `db:"end_time" json:"endTime"`     // exclusive
	DayOfWeek  *int      `db:"day_of_week" json:"dayOfWeek,omitempty"`
	StartDate  *string   `db:"start_date" json:"startDate,omitempty"` // YYYY-MM-DD, inclusive
	EndDate    *string   `db:"end_date" json:"endDate,omitempty"`     // YYYY-MM-DD, inclusive
	Priority   int       `db:"priority" json:"priority"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ParseTimeOfDay converts HH:MM or HH:MM:SS to an offset from local midnight.
// "24:00" is accepted as the end of the day.
func ParseTimeOfDay(s string) (time.Duration, error) {
	if s == "24:00" || s == "24:00:00" {
		return 24 * time.Hour, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// DateLayout is the format of schedule date bounds
const DateLayout = "2006-01-02"

// ErrScheduleInvalid is returned when a schedule row cannot be interpreted
var ErrScheduleInvalid = errors.New("invalid schedule")

// Validate reports rows that can never match. Returned errors wrap ErrScheduleInvalid.
func (s *Schedule) Validate() error {
	start, err := ParseTimeOfDay(s.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start: %v", ErrScheduleInvalid, err)
	}
	end, err := ParseTimeOfDay(s.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end: %v", ErrScheduleInvalid, err)
	}
	if end <= start {
		return fmt.Errorf("%w: end %s is not after start %s", ErrScheduleInvalid, s.EndTime, s.StartTime)
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return fmt.Errorf("%w: day of week %d", ErrScheduleInvalid, *s.DayOfWeek)
	}
	for _, d := range []*string{s.StartDate, s.EndDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse(DateLayout, *d); err != nil {
			return fmt.Errorf("%w: date %q", ErrScheduleInvalid, *d)
		}
	}
	return nil
}
