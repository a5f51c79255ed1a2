package engine

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
)

// ReportTaskType is the type of the analysis report processing task.
const ReportTaskType = "REPORT"

// Workers owns the UUIDs of the local workers.
type Workers struct {
	uuids []string
}

func newWorkers(cfg *Configuration, factory UUIDFactory) *Workers {
	w := &Workers{uuids: make([]string, cfg.WorkerCount)}
	for i := range w.uuids {
		w.uuids[i] = factory.New()
	}
	return w
}

// WorkerUUIDs returns the local worker UUIDs.
func (w *Workers) WorkerUUIDs() []string {
	return slices.Clone(w.uuids)
}

// TaskProcessor processes the tasks of one type.
type TaskProcessor interface {
	TaskType() string
	Process(ctx context.Context, task Task) error
}

// TaskProcessors is the registry of processors by task type.
type TaskProcessors struct {
	mu         sync.RWMutex
	processors map[string]TaskProcessor
}

// NewTaskProcessors returns a registry holding processors.
func NewTaskProcessors(processors ...TaskProcessor) *TaskProcessors {
	r := &TaskProcessors{processors: make(map[string]TaskProcessor)}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any processor of the same type.
func (r *TaskProcessors) Register(p TaskProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.TaskType()] = p
}

// Get returns the processor of taskType.
func (r *TaskProcessors) Get(taskType string) (TaskProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return p, nil
}

// Types returns the supported task types, sorted.
func (r *TaskProcessors) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// reportProcessor extracts the report of a task in a scratch directory.
type reportProcessor struct {
	temp   *TempFolder
	logger cecontainer.Logger
}

func (p *reportProcessor) TaskType() string { return ReportTaskType }

func (p *reportProcessor) Process(ctx context.Context, task Task) error {
	dir, err := p.temp.NewDir("report-")
	if err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	defer os.RemoveAll(dir)
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("Processed report", "task", task.UUID, "component", task.Component)
	return nil
}

// ProcessingScheduler runs one goroutine per local worker. Each worker polls
// the queue and processes tasks one at a time.
type ProcessingScheduler struct {
	queue      *Queue
	processors *TaskProcessors
	workers    []string
	poll       time.Duration
	info       cluster.DistributedInformation
	logger     cecontainer.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Start announces the local workers to the cluster then starts them.
func (s *ProcessingScheduler) Start(ctx context.Context) error {
	if err := s.info.BroadcastWorkerUUIDs(ctx); err != nil {
		return fmt.Errorf("broadcast worker uuids: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, runCtx := errgroup.WithContext(runCtx)
	for _, worker := range s.workers {
		worker := worker
		group.Go(func() error {
			s.run(runCtx, worker)
			return nil
		})
	}
	s.cancel, s.group = cancel, group
	s.logger.Info("Compute engine workers started", "workers", len(s.workers), "pollInterval", s.poll)
	return nil
}

func (s *ProcessingScheduler) run(ctx context.Context, worker string) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		for ctx.Err() == nil && s.processNext(ctx, worker) {
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *ProcessingScheduler) processNext(ctx context.Context, worker string) bool {
	task, ok := s.queue.Peek(worker)
	if !ok {
		return false
	}
	err := s.process(ctx, task)
	if err != nil {
		s.logger.Error("Task failed", "task", task.UUID, "type", task.Type, "worker", worker, "error", err)
	}
	if cerr := s.queue.Complete(task.UUID, err); cerr != nil {
		// The task was reset by the cleaning job while it was processed.
		s.logger.Warn("Could not complete task", "task", task.UUID, "error", cerr)
	}
	return true
}

func (s *ProcessingScheduler) process(ctx context.Context, task Task) error {
	p, err := s.processors.Get(task.Type)
	if err != nil {
		return err
	}
	return p.Process(ctx, task)
}

// Stop cancels the workers and waits for the tasks in progress.
func (s *ProcessingScheduler) Stop(context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	s.cancel, s.group = nil, nil
	s.logger.Info("Compute engine workers stopped")
	return err
}

func processingModule() cecontainer.Module {
	return cecontainer.NewModule("processing", cecontainer.LevelTasks,
		cecontainer.Provide(KeyWorkers, func(r cecontainer.Resolver) (any, error) {
			cfg, err := cecontainer.Get[*Configuration](r, KeyConfiguration)
			if err != nil {
				return nil, err
			}
			factory, err := cecontainer.Get[UUIDFactory](r, KeyUUIDFactory)
			if err != nil {
				return nil, err
			}
			return newWorkers(cfg, factory), nil
		}, KeyConfiguration, KeyUUIDFactory),
		cecontainer.Provide(KeyTaskProcessors, func(r cecontainer.Resolver) (any, error) {
			temp, err := cecontainer.Get[*TempFolder](r, KeyTempFolder)
			if err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			return NewTaskProcessors(&reportProcessor{temp: temp, logger: logger}), nil
		}, KeyTempFolder, KeyLogger),
		cecontainer.Provide(KeyProcessingScheduler, func(r cecontainer.Resolver) (any, error) {
			cfg, err := cecontainer.Get[*Configuration](r, KeyConfiguration)
			if err != nil {
				return nil, err
			}
			queue, err := cecontainer.Get[*Queue](r, KeyQueue)
			if err != nil {
				return nil, err
			}
			workers, err := cecontainer.Get[*Workers](r, KeyWorkers)
			if err != nil {
				return nil, err
			}
			processors, err := cecontainer.Get[*TaskProcessors](r, KeyTaskProcessors)
			if err != nil {
				return nil, err
			}
			info, err := cecontainer.Get[cluster.DistributedInformation](r, KeyDistributedInformation)
			if err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			return &ProcessingScheduler{
				queue:      queue,
				processors: processors,
				workers:    workers.WorkerUUIDs(),
				poll:       cfg.PollInterval,
				info:       info,
				logger:     cecontainer.WithFields(logger, "component", KeyProcessingScheduler.String()),
			}, nil
		}, KeyConfiguration, KeyQueue, KeyWorkers, KeyTaskProcessors, KeyDistributedInformation, KeyLogger),
	)
}
