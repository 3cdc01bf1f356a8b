package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule returns the next fire time strictly after from.
type Schedule interface {
	Next(from time.Time) time.Time
}

type everySchedule struct {
	interval time.Duration
}

// Every fires at a fixed interval. Intervals under one second are raised to one second.
func Every(d time.Duration) Schedule {
	if d < time.Second {
		d = time.Second
	}
	return &everySchedule{interval: d}
}

func (s *everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

func (s *everySchedule) String() string {
	return "every " + s.interval.String()
}

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

// Daily fires at hour:minute UTC each day.
func Daily(hour, minute int) Schedule {
	return DailyIn(hour, minute, time.UTC)
}

// DailyIn fires at hour:minute in loc each day.
func DailyIn(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return &dailySchedule{hour: hour, minute: minute, loc: loc}
}

func (s *dailySchedule) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *dailySchedule) String() string {
	return fmt.Sprintf("daily %02d:%02d %s", s.hour, s.minute, s.loc)
}

type weeklySchedule struct {
	day    time.Weekday
	hour   int
	minute int
}

// Weekly fires on day at hour:minute UTC each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return &weeklySchedule{day: day, hour: hour, minute: minute}
}

func (s *weeklySchedule) Next(from time.Time) time.Time {
	from = from.UTC()

	daysUntil := int(s.day - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}

	next := time.Date(from.Year(), from.Month(), from.Day()+daysUntil, s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s *weeklySchedule) String() string {
	return fmt.Sprintf("weekly %s %02d:%02d UTC", s.day, s.hour, s.minute)
}

type cronSchedule struct {
	expr     string
	schedule cron.Schedule
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse builds a schedule from a five-field cron expression or a descriptor
// such as "@hourly" or "@every 15m".
func Parse(expr string) (Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &cronSchedule{expr: expr, schedule: sched}, nil
}

// Cron is like Parse but panics on an invalid expression.
func Cron(expr string) Schedule {
	sched, err := Parse(expr)
	if err != nil {
		panic(err.Error())
	}
	return sched
}

func (s *cronSchedule) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

func (s *cronSchedule) String() string {
	return "cron " + s.expr
}
