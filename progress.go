package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ProgressReport struct {
	TaskID        string `json:"task_id"`
	TaskName      string `json:"task_name"`
	TaskTotal     int64  `json:"total"`
	TaskCompleted int64  `json:"completed"`
	TaskStatus    string `json:"status"`
	ETA           int64  `json:"eta"`
	Speed         int64  `json:"speed"`
	Done          bool   `json:"done"`
}

type ProgressBroadcaster struct {
	stopCh    chan struct{}
	publishCh chan ProgressReport
	subCh     chan chan ProgressReport
	unsubCh   chan chan ProgressReport
}

var tasksProgressBroadcaster = NewBroadcaster()

func NewBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{
		stopCh:    make(chan struct{}),
		publishCh: make(chan ProgressReport, 16),
		subCh:     make(chan chan ProgressReport, 1),
		unsubCh:   make(chan chan ProgressReport, 1),
	}
}

// Start runs the broadcaster until Stop. New subscribers get the last report of
// every task still running.
func (b *ProgressBroadcaster) Start() {
	subs := map[chan ProgressReport]struct{}{}
	tasks := map[string]ProgressReport{}
	for {
		select {
		case <-b.stopCh:
			return
		case msgCh := <-b.subCh:
			subs[msgCh] = struct{}{}
			for i := range tasks {
				select {
				case msgCh <- tasks[i]:
				default:
				}
			}
		case msgCh := <-b.unsubCh:
			delete(subs, msgCh)
		case msg := <-b.publishCh:
			if msg.Done {
				delete(tasks, msg.TaskID)
			} else {
				tasks[msg.TaskID] = msg
			}
			for msgCh := range subs {
				select {
				case msgCh <- msg:
				default:
				}
			}
		}
	}
}

func (b *ProgressBroadcaster) Stop() {
	close(b.stopCh)
}

// Run is Start bound to a context.
func (b *ProgressBroadcaster) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	b.Start()
}

func (b *ProgressBroadcaster) Subscribe() chan ProgressReport {
	msgCh := make(chan ProgressReport, 16)
	select {
	case b.subCh <- msgCh:
	case <-b.stopCh:
	}
	return msgCh
}

func (b *ProgressBroadcaster) Unsubscribe(msgCh chan ProgressReport) {
	select {
	case b.unsubCh <- msgCh:
	case <-b.stopCh:
	}
}

// Publish never blocks the caller for long, reports are dropped once the
// broadcaster is stopped.
func (b *ProgressBroadcaster) Publish(msg ProgressReport) {
	select {
	case b.publishCh <- msg:
	case <-b.stopCh:
	}
}

// progressTask turns build callbacks into throttled reports.
type progressTask struct {
	b        *ProgressBroadcaster
	interval time.Duration
	lock     sync.Mutex
	report   ProgressReport
	started  time.Time
	last     time.Time
}

func newProgressTask(b *ProgressBroadcaster, name string) *progressTask {
	t := &progressTask{
		b:        b,
		interval: 250 * time.Millisecond,
		started:  time.Now(),
		report: ProgressReport{
			TaskID:     uuid.NewString(),
			TaskName:   name,
			TaskStatus: "Starting",
			ETA:        -1,
			Speed:      -1,
		},
	}
	b.Publish(t.report)
	return t
}

// Update matches renderSession.Options.Progress.
func (t *progressTask) Update(done, total int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	now := time.Now()
	if now.Sub(t.last) < t.interval && done != total {
		return
	}
	t.last = now
	t.report.TaskCompleted = int64(done)
	t.report.TaskTotal = int64(total)
	t.report.TaskStatus = "Building"
	elapsed := now.Sub(t.started).Seconds()
	if elapsed > 0 && done > 0 {
		t.report.Speed = int64(float64(done) / elapsed)
		if t.report.Speed > 0 {
			t.report.ETA = int64(total-done) / t.report.Speed
		}
	}
	t.b.Publish(t.report)
}

func (t *progressTask) Finish(status string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.report.TaskStatus = status
	t.report.ETA = 0
	t.report.Done = true
	t.b.Publish(t.report)
}
