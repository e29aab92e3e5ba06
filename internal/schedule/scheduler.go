package schedule

import (
	"log"
	"sync"
	"time"
)

// Scheduler owns a set of periodic job loops. Each loop runs in its own
// goroutine; a job runs inline in its loop, so one job never overlaps
// itself, while distinct jobs are independent.
type Scheduler struct {
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

// New creates a scheduler ready to accept job loops.
func New() *Scheduler {
	return &Scheduler{
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Stop signals every loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// EverySecond runs job once per second on the second.
func (s *Scheduler) EverySecond(name string, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextSecondMark(now); return t },
		func(prev time.Time) time.Time { return prev.Add(time.Second) },
		job)
}

// EveryMinute runs job once per minute at the given second.
func (s *Scheduler) EveryMinute(name string, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextMinuteMark(now, sec); return t },
		func(prev time.Time) time.Time { return prev.Add(time.Minute) },
		job)
}

// EveryHour runs job once per hour at the given minute and second.
func (s *Scheduler) EveryHour(name string, min, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextHourMark(now, min, sec); return t },
		func(prev time.Time) time.Time { return prev.Add(time.Hour) },
		job)
}

// EveryDay runs job once per day at the given wall-clock time.
func (s *Scheduler) EveryDay(name string, hour, min, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextDayMark(now, hour, min, sec); return t },
		func(prev time.Time) time.Time { return prev.AddDate(0, 0, 1) },
		job)
}

// EveryWeek runs job once per week on the given weekday and wall-clock time.
func (s *Scheduler) EveryWeek(name string, weekday time.Weekday, hour, min, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextWeekMark(now, weekday, hour, min, sec); return t },
		func(prev time.Time) time.Time { return prev.AddDate(0, 0, 7) },
		job)
}

// EveryMonth runs job once per month on the given day (clamped to short
// months) and wall-clock time.
func (s *Scheduler) EveryMonth(name string, day, hour, min, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextMonthMark(now, day, hour, min, sec); return t },
		func(prev time.Time) time.Time {
			return monthMark(prev.Year(), prev.Month()+1, day, hour, min, sec, prev.Location())
		},
		job)
}

// EveryYear runs job once per year on the given month and day.
func (s *Scheduler) EveryYear(name string, month time.Month, day, hour, min, sec int, job func()) {
	s.loop(name,
		func(now time.Time) time.Time { _, t := NextYearMark(now, month, day, hour, min, sec); return t },
		func(prev time.Time) time.Time {
			return yearMark(prev.Year()+1, month, day, hour, min, sec, prev.Location())
		},
		job)
}

// loop sleeps to each mark and runs the job. The next mark always derives
// from the previous mark, so an overrunning job fires again immediately on
// the following pass rather than sliding the cadence.
func (s *Scheduler) loop(name string, first func(time.Time) time.Time, advance func(time.Time) time.Time, job func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		target := first(s.now())
		for {
			if delay := target.Sub(s.now()); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-s.stopCh:
					timer.Stop()
					return
				case <-timer.C:
				}
			} else {
				select {
				case <-s.stopCh:
					return
				default:
				}
			}
			s.runJob(name, job)
			target = advance(target)
		}
	}()
}

func (s *Scheduler) runJob(name string, job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] job %q panicked: %v", name, r)
		}
	}()
	job()
}
