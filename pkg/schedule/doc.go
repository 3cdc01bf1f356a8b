// Package schedule computes fire times for recurring enqueues.
//
// This package includes:
//   - Schedule interface for defining recurring timetables
//   - Every() for fixed-interval schedules
//   - Daily() / DailyIn() for a fixed wall-clock time each day
//   - Weekly() for a fixed day and time each week
//   - Cron() / Parse() for cron expressions and descriptors such as "@hourly"
package schedule
