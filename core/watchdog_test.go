package core

import "testing"

type mockWatchdog struct {
	timeoutMS uint32
	starts    int
	feeds     int
}

func (w *mockWatchdog) Start(timeoutMS uint32) error {
	w.timeoutMS = timeoutMS
	w.starts++
	return nil
}

func (w *mockWatchdog) Feed() { w.feeds++ }

func TestStartWatchdogArmsAndFeeds(t *testing.T) {
	TimerInit()
	ResetTasks()

	wd := &mockWatchdog{}
	SetWatchdogDriver(wd)

	if err := StartWatchdog(); err != nil {
		t.Fatalf("StartWatchdog failed: %v", err)
	}

	if wd.starts != 1 || wd.timeoutMS != WatchdogTimeoutMS {
		t.Errorf("Expected 1 start with %dms timeout, got %d starts with %dms",
			WatchdogTimeoutMS, wd.starts, wd.timeoutMS)
	}
	if wd.feeds != 1 {
		t.Errorf("Expected an immediate feed on start, got %d", wd.feeds)
	}
}

func TestWatchdogFeederInterval(t *testing.T) {
	TimerInit()
	ResetTasks()

	wd := &mockWatchdog{}
	SetWatchdogDriver(wd)

	if err := StartWatchdog(); err != nil {
		t.Fatalf("StartWatchdog failed: %v", err)
	}

	SetTime(TimerFromMS(WatchdogFeedIntervalMS) - 1)
	ProcessTimers()
	RunPendingTasks()
	if wd.feeds != 1 {
		t.Errorf("Feeder ran before its interval: %d feeds", wd.feeds)
	}

	SetTime(TimerFromMS(WatchdogFeedIntervalMS))
	ProcessTimers()
	RunPendingTasks()
	if wd.feeds != 2 {
		t.Errorf("Expected 2 feeds after one interval, got %d", wd.feeds)
	}

	SetTime(TimerFromMS(2 * WatchdogFeedIntervalMS))
	ProcessTimers()
	RunPendingTasks()
	if wd.feeds != 3 {
		t.Errorf("Expected 3 feeds after two intervals, got %d", wd.feeds)
	}
}
