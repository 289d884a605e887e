package utilities

import (
	"time"

	"go.uber.org/zap"
)

// Timer measures how long a block of code takes.
//
//	t := utilities.StartTimer()
//	// block of code to time
//	t.Stop()
//	fmt.Printf("Code executed in %.03f sec.\n", t.Interval().Seconds())
type Timer struct {
	start    time.Time
	end      time.Time
	interval time.Duration
	now      func() time.Time
}

// StartTimer starts a timer using the wall clock
func StartTimer() *Timer {
	return startTimer(time.Now)
}

func startTimer(now func() time.Time) *Timer {
	return &Timer{start: now(), now: now}
}

// Stop ends the timed block and returns the elapsed interval. Stopping again
// extends the interval to the new end.
func (t *Timer) Stop() time.Duration {
	t.end = t.now()
	t.interval = t.end.Sub(t.start)
	return t.interval
}

// Interval returns the interval measured by the last Stop
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Elapsed returns the time since the timer started without stopping it
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// StopAndLog stops the timer and logs the interval under msg
func (t *Timer) StopAndLog(logger *zap.Logger, msg string, fields ...zap.Field) time.Duration {
	d := t.Stop()
	logger.Debug(msg, append(fields, zap.Duration("elapsed", d))...)
	return d
}
