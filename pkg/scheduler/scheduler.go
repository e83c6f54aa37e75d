package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"go.uber.org/zap"
)

type TaskInstanceStatus int

func (s TaskInstanceStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case UpstreamFailed:
		return "upstream_failed"
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

const (
	Pending TaskInstanceStatus = iota
	Queued
	Running
	Failed
	UpstreamFailed
	Succeeded
	Skipped
)

type TaskInstance interface {
	GetID() string
	GetPipeline() *pipeline.Pipeline
	GetStep() *pipeline.Step
	GetHumanID() string
	GetHumanReadableDescription() string

	GetStatus() TaskInstanceStatus
	MarkAs(status TaskInstanceStatus)
	Completed() bool

	GetUpstream() []TaskInstance
	GetDownstream() []TaskInstance
	AddUpstream(t TaskInstance)
	AddDownstream(t TaskInstance)
}

type StepInstance struct {
	ID       string
	HumanID  string
	Pipeline *pipeline.Pipeline
	Step     *pipeline.Step

	statusLock sync.RWMutex
	status     TaskInstanceStatus
	upstream   []TaskInstance
	downstream []TaskInstance
}

func (t *StepInstance) GetID() string {
	return t.ID
}

func (t *StepInstance) GetHumanID() string {
	return t.HumanID
}

func (t *StepInstance) GetHumanReadableDescription() string {
	return t.Step.Name + " (" + string(t.Step.Kind) + ")"
}

func (t *StepInstance) GetStatus() TaskInstanceStatus {
	t.statusLock.RLock()
	defer t.statusLock.RUnlock()
	return t.status
}

func (t *StepInstance) Completed() bool {
	status := t.GetStatus()
	return status == Failed || status == Succeeded || status == UpstreamFailed || status == Skipped
}

func (t *StepInstance) MarkAs(status TaskInstanceStatus) {
	t.statusLock.Lock()
	defer t.statusLock.Unlock()
	t.status = status
}

func (t *StepInstance) GetPipeline() *pipeline.Pipeline {
	return t.Pipeline
}

func (t *StepInstance) GetStep() *pipeline.Step {
	return t.Step
}

func (t *StepInstance) GetUpstream() []TaskInstance {
	return t.upstream
}

func (t *StepInstance) GetDownstream() []TaskInstance {
	return t.downstream
}

func (t *StepInstance) AddUpstream(task TaskInstance) {
	t.upstream = append(t.upstream, task)
}

func (t *StepInstance) AddDownstream(task TaskInstance) {
	t.downstream = append(t.downstream, task)
}

type TaskExecutionResult struct {
	Instance  TaskInstance
	Error     error
	Attempts  int
	StartedAt time.Time
	Duration  time.Duration
}

type Scheduler struct {
	logger           *zap.SugaredLogger
	taskScheduleLock sync.Mutex
	pipeline         *pipeline.Pipeline
	queueClosed      bool

	taskInstances []TaskInstance
	taskNameMap   map[string]TaskInstance

	WorkQueue chan TaskInstance
	Results   chan *TaskExecutionResult
}

func NewScheduler(logger *zap.SugaredLogger, p *pipeline.Pipeline) *Scheduler {
	instances := make([]TaskInstance, 0, len(p.Steps))
	for _, step := range p.Steps {
		instances = append(instances, &StepInstance{
			ID:         uuid.New().String(),
			HumanID:    step.Name,
			Pipeline:   p,
			Step:       step,
			status:     Pending,
			upstream:   make([]TaskInstance, 0),
			downstream: make([]TaskInstance, 0),
		})
	}

	s := &Scheduler{
		logger:        logger,
		pipeline:      p,
		taskInstances: instances,
		WorkQueue:     make(chan TaskInstance, len(instances)+1),
		Results:       make(chan *TaskExecutionResult),
	}
	s.initialize()

	return s
}

func (s *Scheduler) initialize() {
	s.taskNameMap = make(map[string]TaskInstance, len(s.taskInstances))
	for _, ti := range s.taskInstances {
		s.taskNameMap[ti.GetStep().Name] = ti
	}

	for _, ti := range s.taskInstances {
		for _, dep := range ti.GetStep().Upstreams {
			upstream, ok := s.taskNameMap[dep]
			if !ok {
				continue
			}

			ti.AddUpstream(upstream)
			upstream.AddDownstream(ti)
		}
	}
}

func (s *Scheduler) InstanceCount() int {
	return len(s.taskInstances)
}

func (s *Scheduler) InstanceCountByStatus(status TaskInstanceStatus) int {
	return len(s.GetTaskInstancesByStatus(status))
}

func (s *Scheduler) Instances() []TaskInstance {
	return s.taskInstances
}

func (s *Scheduler) MarkAll(status TaskInstanceStatus) {
	for _, instance := range s.taskInstances {
		instance.MarkAs(status)
	}
}

// MarkStep marks the instance of the given step, and optionally everything downstream of it.
func (s *Scheduler) MarkStep(name string, status TaskInstanceStatus, downstream bool) bool {
	instance, ok := s.taskNameMap[name]
	if !ok {
		return false
	}

	s.MarkTaskInstance(instance, status, downstream)
	return true
}

func (s *Scheduler) MarkTaskInstance(instance TaskInstance, status TaskInstanceStatus, downstream bool) {
	instance.MarkAs(status)
	if !downstream {
		return
	}

	for _, d := range instance.GetDownstream() {
		s.MarkTaskInstance(d, status, downstream)
	}
}

func (s *Scheduler) MarkTaskInstanceIfNotSkipped(instance TaskInstance, status TaskInstanceStatus, markDownstream bool) {
	if instance.GetStatus() == Skipped {
		return
	}
	instance.MarkAs(status)
	if !markDownstream {
		return
	}

	for _, d := range instance.GetDownstream() {
		s.MarkTaskInstanceIfNotSkipped(d, status, markDownstream)
	}
}

func (s *Scheduler) markTaskInstanceFailedWithDownstream(instance TaskInstance) {
	s.MarkTaskInstanceIfNotSkipped(instance, UpstreamFailed, true)
	s.MarkTaskInstanceIfNotSkipped(instance, Failed, false)
}

func (s *Scheduler) GetTaskInstancesByStatus(status TaskInstanceStatus) []TaskInstance {
	instances := make([]TaskInstance, 0)
	for _, i := range s.taskInstances {
		if i.GetStatus() != status {
			continue
		}

		instances = append(instances, i)
	}

	return instances
}

// Run dispatches the pending instances until every instance is completed or the context is cancelled.
// Instances that never got the chance to run are left in their current status.
func (s *Scheduler) Run(ctx context.Context) []*TaskExecutionResult {
	results := make([]*TaskExecutionResult, 0)
	if len(s.GetTaskInstancesByStatus(Pending)) == 0 {
		s.logger.Debug("no tasks to run, finishing the scheduler loop")
		return nil
	}

	if ctx.Err() != nil {
		s.closeWorkQueue()
		return results
	}

	// the work queue has room for every instance, the first batch never blocks
	s.Kickstart()

	s.logger.Debug("started the scheduler loop")
	for {
		select {
		case <-ctx.Done():
			s.closeWorkQueue()
			return results
		case result := <-s.Results:
			s.logger.Debugw("received task result", "step", result.Instance.GetHumanID(), "attempts", result.Attempts)
			results = append(results, result)
			if s.Tick(result) {
				s.logger.Debug("pipeline has completed, finishing the scheduler loop")
				return results
			}
		}
	}
}

func (s *Scheduler) closeWorkQueue() {
	s.taskScheduleLock.Lock()
	defer s.taskScheduleLock.Unlock()

	s.closeWorkQueueLocked()
}

func (s *Scheduler) closeWorkQueueLocked() {
	if s.queueClosed {
		return
	}

	s.queueClosed = true
	close(s.WorkQueue)
}

// Tick marks an iteration of the scheduler loop. It is called when a result is received.
// The results are mainly fed from a channel, but Tick allows simulating scheduler loops
// without workers, which is what the tests do.
func (s *Scheduler) Tick(result *TaskExecutionResult) bool {
	s.taskScheduleLock.Lock()
	defer s.taskScheduleLock.Unlock()

	if result.Instance.GetStatus() != Skipped {
		s.MarkTaskInstance(result.Instance, Succeeded, false)
	}
	if result.Error != nil {
		s.markTaskInstanceFailedWithDownstream(result.Instance)
	}

	if s.hasPipelineFinished() {
		s.closeWorkQueueLocked()
		return true
	}

	// a cancelled run closes the queue while results are still coming in
	if s.queueClosed {
		return false
	}

	for _, task := range s.getScheduleableTasks() {
		task.MarkAs(Queued)
		s.WorkQueue <- task
	}

	return false
}

// Kickstart initiates the scheduler process by sending a "start" task for the processing.
func (s *Scheduler) Kickstart() {
	s.Tick(&TaskExecutionResult{
		Instance: &StepInstance{
			Step:   &pipeline.Step{Name: "start", Kind: pipeline.StepKindMarker},
			status: Succeeded,
		},
	})
}

func (s *Scheduler) getScheduleableTasks() []TaskInstance {
	tasks := make([]TaskInstance, 0)
	for _, task := range s.taskInstances {
		if task.GetStatus() != Pending {
			continue
		}

		if !s.allDependenciesCompletedForTask(task) {
			continue
		}

		tasks = append(tasks, task)
	}

	return tasks
}

// a failed upstream marks its downstream as upstream_failed right away, so by the time a pending
// task has only completed upstreams they are either succeeded or skipped.
func (s *Scheduler) allDependenciesCompletedForTask(t TaskInstance) bool {
	for _, upstream := range t.GetUpstream() {
		status := upstream.GetStatus()
		if status == Pending || status == Queued || status == Running {
			return false
		}
	}

	return true
}

func (s *Scheduler) hasPipelineFinished() bool {
	for _, task := range s.taskInstances {
		if !task.Completed() {
			return false
		}
	}

	return true
}
