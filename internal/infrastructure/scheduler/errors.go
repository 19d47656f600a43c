package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning rejects submissions before Start or after Stop
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull rejects submissions while every queue slot is taken
	ErrJobQueueFull = errors.New("job queue is full")

	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	ErrInvalidCronSchedule = errors.New("invalid cron schedule")

	// ErrSyncInterrupted becomes the error message of a run cut short by
	// shutdown or its job timeout
	ErrSyncInterrupted = errors.New("sync interrupted")
)
