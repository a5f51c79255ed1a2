package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
	"github.com/GoCodeAlone/cecontainer/props"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type sequentialUUIDs struct{ n int }

func (s *sequentialUUIDs) New() string {
	s.n++
	return "uuid-" + strconv.Itoa(s.n)
}

type staticWorkers []string

func (w staticWorkers) WorkerUUIDs() []string { return w }

func TestConfigurationFromProps(t *testing.T) {
	cfg, err := ConfigurationFromProps(props.New(nil))
	require.NoError(t, err)
	assert.Equal(t, &Configuration{
		WorkerCount:      DefaultWorkerCount,
		PollInterval:     DefaultPollInterval,
		CleaningSchedule: DefaultCleaningSchedule,
		HTTPHost:         DefaultHTTPHost,
	}, cfg)

	cfg, err = ConfigurationFromProps(props.New(map[string]string{
		props.CEWorkerCount:      "4",
		props.CEWorkerPoll:       "250",
		props.CECleaningSchedule: "*/10 * * * *",
		props.CEHTTPPort:         "9100",
	}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 9100, cfg.HTTPPort)
}

func TestConfigurationFromPropsRejectsInvalidValues(t *testing.T) {
	tests := map[string][]string{
		"zero workers":     {props.CEWorkerCount, "0"},
		"too many workers": {props.CEWorkerCount, "11"},
		"not a number":     {props.CEWorkerCount, "many"},
		"bad schedule":     {props.CECleaningSchedule, "every now and then"},
		"bad poll":         {props.CEWorkerPoll, "soon"},
		"negative port":    {props.CEHTTPPort, "-1"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ConfigurationFromProps(props.New(nil).With(kv...))
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestServerFileSystem(t *testing.T) {
	home := t.TempDir()
	fs, err := newServerFileSystem(props.New(map[string]string{props.PathHome: home}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), fs.Data)
	assert.Equal(t, filepath.Join(home, "temp"), fs.Temp)
	assert.Equal(t, filepath.Join(home, "temp", "shared"), fs.Shared)
	assert.DirExists(t, fs.Shared)

	_, err = newServerFileSystem(props.New(nil))
	assert.ErrorIs(t, err, props.ErrMissingProperty)

	_, err = newServerFileSystem(props.New(map[string]string{props.PathHome: filepath.Join(home, "missing")}))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestTempFolderIsCleanedOnClose(t *testing.T) {
	fs, err := newServerFileSystem(props.New(map[string]string{props.PathHome: t.TempDir()}))
	require.NoError(t, err)
	temp, err := newTempFolder(fs)
	require.NoError(t, err)

	dir, err := temp.NewDir("report-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dir, temp.Dir))

	require.NoError(t, temp.Close())
	assert.NoDirExists(t, temp.Dir)
}

func TestQueueLifecycle(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	q := NewQueue(clock, &sequentialUUIDs{})

	first, err := q.Submit(ReportTaskType, "project-a")
	require.NoError(t, err)
	second, err := q.Submit(ReportTaskType, "project-b")
	require.NoError(t, err)
	_, err = q.Submit("", "project-c")
	require.Error(t, err)

	peeked, ok := q.Peek("worker-1")
	require.True(t, ok)
	assert.Equal(t, first.UUID, peeked.UUID, "tasks are handed out in submission order")
	assert.Equal(t, TaskInProgress, peeked.Status)
	assert.Equal(t, "worker-1", peeked.WorkerUUID)

	require.NoError(t, q.Complete(first.UUID, nil))
	assert.Error(t, q.Complete(first.UUID, nil), "a task completes once")
	assert.ErrorIs(t, q.Complete("missing", nil), ErrTaskNotFound)

	peeked, ok = q.Peek("worker-2")
	require.True(t, ok)
	assert.Equal(t, second.UUID, peeked.UUID)
	require.NoError(t, q.Complete(second.UUID, errors.New("boom")))

	got, err := q.Get(second.UUID)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, QueueStats{Succeeded: 1, Failed: 1}, q.Stats())

	_, ok = q.Peek("worker-1")
	assert.False(t, ok)
}

func TestQueueResetTasksWithUnknownWorker(t *testing.T) {
	q := NewQueue(systemClock{}, &sequentialUUIDs{})
	for i := 0; i < 3; i++ {
		_, err := q.Submit(ReportTaskType, "")
		require.NoError(t, err)
	}
	_, _ = q.Peek("alive")
	_, _ = q.Peek("gone")

	assert.Equal(t, 1, q.ResetTasksWithUnknownWorker([]string{"alive"}))
	assert.Equal(t, QueueStats{Pending: 2, InProgress: 1}, q.Stats())

	reset, ok := q.Peek("alive")
	require.True(t, ok)
	assert.Empty(t, q.ResetTasksWithUnknownWorker([]string{"alive"}))
	assert.Equal(t, "alive", reset.WorkerUUID)
}

func TestQueueMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	q := NewQueue(systemClock{}, &sequentialUUIDs{})
	m, err := newQueueMetrics(registry, q)
	require.NoError(t, err)

	_, err = q.Submit(ReportTaskType, "")
	require.NoError(t, err)
	_, err = q.Submit(ReportTaskType, "")
	require.NoError(t, err)
	task, _ := q.Peek("w")
	require.NoError(t, q.Complete(task.UUID, nil))

	count, err := testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	expected := `
# HELP ce_queue_pending Number of tasks waiting for a worker.
# TYPE ce_queue_pending gauge
ce_queue_pending 1
# HELP ce_tasks_succeeded_total Number of tasks processed with success.
# TYPE ce_tasks_succeeded_total counter
ce_tasks_succeeded_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"ce_queue_pending", "ce_tasks_succeeded_total"))

	_, err = newQueueMetrics(registry, q)
	assert.Error(t, err, "metrics are registered once")

	count, err = testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "a failed registration leaves the first one in place")

	require.NoError(t, m.Close())
	count, err = testutil.GatherAndCount(registry)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorkersHaveDistinctUUIDs(t *testing.T) {
	w := newWorkers(&Configuration{WorkerCount: 3}, timeOrderedUUIDs{})
	uuids := w.WorkerUUIDs()
	require.Len(t, uuids, 3)
	assert.NotEqual(t, uuids[0], uuids[1])
	assert.NotEqual(t, uuids[1], uuids[2])

	uuids[0] = "changed"
	assert.NotEqual(t, "changed", w.WorkerUUIDs()[0])
}

func TestTaskProcessors(t *testing.T) {
	r := NewTaskProcessors(&reportProcessor{})
	p, err := r.Get(ReportTaskType)
	require.NoError(t, err)
	assert.Equal(t, ReportTaskType, p.TaskType())

	_, err = r.Get("ISSUE_SYNC")
	assert.ErrorIs(t, err, ErrUnknownTaskType)
	assert.Equal(t, []string{ReportTaskType}, r.Types())
}

type failingProcessor struct{}

func (failingProcessor) TaskType() string { return "FAIL" }
func (failingProcessor) Process(context.Context, Task) error {
	return errors.New("processing failed")
}

func TestProcessingSchedulerProcessesTasks(t *testing.T) {
	fs, err := newServerFileSystem(props.New(map[string]string{props.PathHome: t.TempDir()}))
	require.NoError(t, err)
	temp, err := newTempFolder(fs)
	require.NoError(t, err)
	defer temp.Close()

	q := NewQueue(systemClock{}, timeOrderedUUIDs{})
	workers := staticWorkers{"w1", "w2"}
	s := &ProcessingScheduler{
		queue:      q,
		processors: NewTaskProcessors(&reportProcessor{temp: temp, logger: cecontainer.NopLogger{}}, failingProcessor{}),
		workers:    workers,
		poll:       5 * time.Millisecond,
		info:       cluster.NewStandaloneDistributedInformation(workers),
		logger:     cecontainer.NopLogger{},
	}
	require.NoError(t, s.Start(context.Background()))

	ok, _ := q.Submit(ReportTaskType, "project")
	ko, _ := q.Submit("FAIL", "project")
	unknown, _ := q.Submit("UNKNOWN", "project")

	assert.Eventually(t, func() bool {
		return q.Stats() == QueueStats{Succeeded: 1, Failed: 2}
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	got, _ := q.Get(ok.UUID)
	assert.Equal(t, TaskSuccess, got.Status)
	got, _ = q.Get(ko.UUID)
	assert.Equal(t, "processing failed", got.Error)
	got, _ = q.Get(unknown.UUID)
	assert.Contains(t, got.Error, ErrUnknownTaskType.Error())

	entries, err := os.ReadDir(temp.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "report directories are removed")
}

func TestCleaningSchedulerResetsTasksOfUnknownWorkers(t *testing.T) {
	q := NewQueue(systemClock{}, timeOrderedUUIDs{})
	_, _ = q.Submit(ReportTaskType, "")
	_, _ = q.Submit(ReportTaskType, "")
	_, _ = q.Peek("w1")
	_, _ = q.Peek("crashed")

	info := cluster.NewStandaloneDistributedInformation(staticWorkers{"w1"})
	s := &CleaningScheduler{schedule: "@every 1h", queue: q, info: info, logger: cecontainer.NopLogger{}}

	lock := info.AcquireCleanJobLock()
	require.True(t, lock.TryLock())
	reset, ran := s.CleanNow()
	assert.False(t, ran, "the clean job lock is held")
	assert.Zero(t, reset)
	lock.Unlock()

	reset, ran = s.CleanNow()
	assert.True(t, ran)
	assert.Equal(t, 1, reset)
	assert.Equal(t, QueueStats{Pending: 1, InProgress: 1}, q.Stats())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestCleaningSchedulerRunsOnSchedule(t *testing.T) {
	q := NewQueue(systemClock{}, timeOrderedUUIDs{})
	_, _ = q.Submit(ReportTaskType, "")
	_, _ = q.Peek("crashed")

	s := &CleaningScheduler{
		schedule: "@every 1s",
		queue:    q,
		info:     cluster.NewStandaloneDistributedInformation(staticWorkers{"w1"}),
		logger:   cecontainer.NopLogger{},
	}
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return q.Stats().Pending == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestStatusTransitions(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s := newStatus(fixedClock{now: now})
	assert.Equal(t, ProcessingInit, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, ProcessingStarted, s.State())
	assert.Equal(t, now, s.StartedAt())

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, ProcessingStopping, s.State())
	require.NoError(t, s.Close())
	assert.Equal(t, ProcessingStopped, s.State())
}

func TestHTTPServerURLFollowsLifecycle(t *testing.T) {
	urlFile := filepath.Join(t.TempDir(), HTTPURLFileName)
	s := &HTTPServer{
		host:     "127.0.0.1",
		urlFile:  urlFile,
		registry: prometheus.NewRegistry(),
		logger:   cecontainer.NopLogger{},
	}
	assert.Empty(t, s.URL())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = s.URL()
		}
	}()
	require.NoError(t, s.Start(context.Background()))
	<-done

	raw, err := os.ReadFile(urlFile)
	require.NoError(t, err)
	assert.Equal(t, string(raw), s.URL())
	assert.True(t, strings.HasPrefix(s.URL(), "http://127.0.0.1:"), s.URL())

	require.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, s.URL())
	assert.NoFileExists(t, urlFile)
}
