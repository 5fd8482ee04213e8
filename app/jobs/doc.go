// Package jobs schedules the periodic maintenance work of a loan desk with robfig/cron.
//
// Two jobs exist: a nightly report that logs every overdue loan, and a purge
// of expired shared cache entries for cache backends that keep them around
// (memcache and pgcache; Redis expires keys by itself).
package jobs
