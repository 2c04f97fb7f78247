// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTick is how often due tasks are looked for.
const DefaultTick = 100 * time.Millisecond

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
	running  atomic.Bool
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager runs one-shot and repeating callbacks from a single heap.
// A repeating callback never overlaps itself: a run that is still busy when
// the task comes due again is skipped.
type TimerManager struct {
	queue  TimerQueue
	tasks  map[int64]*TimerTask
	mutex  sync.Mutex
	nextId int64
	tick   time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

func NewTimerManager() *TimerManager {
	return NewTimerManagerWithTick(DefaultTick)
}

func NewTimerManagerWithTick(tick time.Duration) *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		tasks:  make(map[int64]*TimerTask),
		nextId: 1,
		tick:   tick,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  m.now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	m.tasks[task.Id] = task
	return task.Id
}

// Every runs callback each interval, first after one interval.
func (m *TimerManager) Every(interval time.Duration, callback func()) int64 {
	return m.AddTimer(interval, interval, callback)
}

// After runs callback once after delay.
func (m *TimerManager) After(delay time.Duration, callback func()) int64 {
	return m.AddTimer(delay, 0, callback)
}

// RemoveTimer cancels a task. A run already in progress finishes.
func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task, ok := m.tasks[timerId]
	if !ok {
		return
	}
	delete(m.tasks, timerId)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
}

// Len is the number of scheduled tasks.
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.tasks)
}

// Stop ends the scheduling loop; pending tasks never run.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *TimerManager) process() {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			for _, task := range m.due() {
				m.run(task)
			}
		}
	}
}

func (m *TimerManager) due() []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	var ready []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		ready = append(ready, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		} else {
			delete(m.tasks, task.Id)
		}
	}
	return ready
}

func (m *TimerManager) run(task *TimerTask) {
	if !task.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer task.running.Store(false)
		task.Callback()
	}()
}
