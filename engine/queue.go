package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/cecontainer"
)

// TaskStatus is the progress of a task in the queue.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskSuccess    TaskStatus = "SUCCESS"
	TaskFailed     TaskStatus = "FAILED"
)

// Task is a unit of work processed by one worker.
type Task struct {
	UUID        string     `json:"id"`
	Type        string     `json:"type"`
	Component   string     `json:"component,omitempty"`
	Status      TaskStatus `json:"status"`
	WorkerUUID  string     `json:"workerUuid,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ExecutedAt  *time.Time `json:"executedAt,omitempty"`
	Error       string     `json:"errorMessage,omitempty"`
}

// QueueStats counts tasks by outcome.
type QueueStats struct {
	Pending    int
	InProgress int
	Succeeded  int
	Failed     int
}

var errEmptyTaskType = errors.New("task type is required")

// Queue is the in-memory task queue. Tasks are handed out in submission
// order.
type Queue struct {
	clock Clock
	uuids UUIDFactory

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewQueue returns an empty queue stamping tasks with clock and naming them
// with uuids.
func NewQueue(clock Clock, uuids UUIDFactory) *Queue {
	return &Queue{clock: clock, uuids: uuids, tasks: make(map[string]*Task)}
}

// Submit enqueues a pending task.
func (q *Queue) Submit(taskType, component string) (Task, error) {
	if taskType == "" {
		return Task{}, errEmptyTaskType
	}
	t := &Task{
		UUID:        q.uuids.New(),
		Type:        taskType,
		Component:   component,
		Status:      TaskPending,
		SubmittedAt: q.clock.Now(),
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks[t.UUID] = t
	q.order = append(q.order, t.UUID)
	return *t, nil
}

// Peek hands the oldest pending task to worker and marks it in progress.
func (q *Queue) Peek(worker string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != TaskPending {
			continue
		}
		now := q.clock.Now()
		t.Status = TaskInProgress
		t.WorkerUUID = worker
		t.StartedAt = &now
		return *t, true
	}
	return Task{}, false
}

// Complete records the outcome of an in-progress task.
func (q *Queue) Complete(id string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Status != TaskInProgress {
		return fmt.Errorf("task %s is %s, not %s", id, t.Status, TaskInProgress)
	}
	now := q.clock.Now()
	t.ExecutedAt = &now
	t.Status = TaskSuccess
	if cause != nil {
		t.Status = TaskFailed
		t.Error = cause.Error()
	}
	return nil
}

// Get returns a copy of the task.
func (q *Queue) Get(id string) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return *t, nil
}

// ResetTasksWithUnknownWorker puts back in the queue the in-progress tasks
// held by workers not listed in known. It returns how many were reset.
func (q *Queue) ResetTasksWithUnknownWorker(known []string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	reset := 0
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != TaskInProgress || slices.Contains(known, t.WorkerUUID) {
			continue
		}
		t.Status = TaskPending
		t.WorkerUUID = ""
		t.StartedAt = nil
		reset++
	}
	return reset
}

// Stats counts the tasks by status.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s QueueStats
	for _, t := range q.tasks {
		switch t.Status {
		case TaskPending:
			s.Pending++
		case TaskInProgress:
			s.InProgress++
		case TaskSuccess:
			s.Succeeded++
		case TaskFailed:
			s.Failed++
		}
	}
	return s
}

// QueueMetrics exposes the queue counters to the metrics registry.
type QueueMetrics struct {
	registry   *prometheus.Registry
	collectors []prometheus.Collector
}

func newQueueMetrics(registry *prometheus.Registry, queue *Queue) (*QueueMetrics, error) {
	stat := func(pick func(QueueStats) int) func() float64 {
		return func() float64 { return float64(pick(queue.Stats())) }
	}
	m := &QueueMetrics{
		registry: registry,
		collectors: []prometheus.Collector{
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "ce", Subsystem: "queue", Name: "pending",
				Help: "Number of tasks waiting for a worker.",
			}, stat(func(s QueueStats) int { return s.Pending })),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "ce", Subsystem: "queue", Name: "in_progress",
				Help: "Number of tasks being processed.",
			}, stat(func(s QueueStats) int { return s.InProgress })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "ce", Subsystem: "tasks", Name: "succeeded_total",
				Help: "Number of tasks processed with success.",
			}, stat(func(s QueueStats) int { return s.Succeeded })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "ce", Subsystem: "tasks", Name: "failed_total",
				Help: "Number of tasks processed with error.",
			}, stat(func(s QueueStats) int { return s.Failed })),
		},
	}
	for i, c := range m.collectors {
		if err := registry.Register(c); err != nil {
			m.unregister(m.collectors[:i])
			return nil, fmt.Errorf("register queue metrics: %w", err)
		}
	}
	return m, nil
}

func (m *QueueMetrics) unregister(collectors []prometheus.Collector) {
	for _, c := range collectors {
		m.registry.Unregister(c)
	}
}

// Close unregisters the queue collectors.
func (m *QueueMetrics) Close() error {
	m.unregister(m.collectors)
	return nil
}

func queueModule() cecontainer.Module {
	return cecontainer.NewModule("queue", cecontainer.LevelTasks,
		cecontainer.Provide(KeyQueue, func(r cecontainer.Resolver) (any, error) {
			clock, err := cecontainer.Get[Clock](r, KeyClock)
			if err != nil {
				return nil, err
			}
			uuids, err := cecontainer.Get[UUIDFactory](r, KeyUUIDFactory)
			if err != nil {
				return nil, err
			}
			return NewQueue(clock, uuids), nil
		}, KeyClock, KeyUUIDFactory),
		cecontainer.Provide(KeyQueueMetrics, func(r cecontainer.Resolver) (any, error) {
			registry, err := cecontainer.Get[*prometheus.Registry](r, KeyMetricsRegistry)
			if err != nil {
				return nil, err
			}
			queue, err := cecontainer.Get[*Queue](r, KeyQueue)
			if err != nil {
				return nil, err
			}
			return newQueueMetrics(registry, queue)
		}, KeyMetricsRegistry, KeyQueue),
	)
}
