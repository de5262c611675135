package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/job"
	"github.com/akolanti/DocuSense/internal/rag/documents"
)

// MockRagService counts jobs and reports one step per job
type MockRagService struct {
	ProcessedCount int32
}

func (m *MockRagService) ProcessJob(ctx context.Context, j jobModel.Job, step documents.StepFunc) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	step(jobModel.ChunkModelCall)
	j.Status = jobModel.JobStatusComplete
	j.CurrentStep = jobModel.Complete
	return j
}

type MockJobStore struct {
	mu    sync.Mutex
	saved []jobModel.Job
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Id == jobId {
			return m.saved[i], true
		}
	}
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, j)
	return nil
}

func (m *MockJobStore) statuses(id string) []jobModel.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []jobModel.JobStatus
	for _, j := range m.saved {
		if j.Id == id {
			out = append(out, j.Status)
		}
	}
	return out
}

func resetPool(t *testing.T, idle time.Duration, min int64) {
	t.Helper()
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, min)
	idleWorkerTimeout = idle
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerPool_Flow(t *testing.T) {
	resetPool(t, time.Minute, 1)
	jobStore := &MockJobStore{}
	jobSvc := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          jobStore,
	})
	mockRag := &MockRagService{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag)
	// InitWorkerPool reads IDLE_WORKER_TIMEOUT, which is unset here
	InitWorkerPool(stopChan, wg)

	t.Run("Pool starts with one worker", func(t *testing.T) {
		if c := atomic.LoadInt64(&currentWorkerCount); c != 1 {
			t.Errorf("expected 1 worker, got %d", c)
		}
	})

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true
		waitFor(t, func() bool { return atomic.LoadInt64(&currentWorkerCount) == 2 })
	})

	t.Run("Worker processes a queued job", func(t *testing.T) {
		queued, err := jobSvc.Enqueue(context.Background(), jobModel.JobTypeSummarize,
			docIdentity(), jobModel.JobPayload{Ratio: 0.3})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		waitFor(t, func() bool { return atomic.LoadInt32(&mockRag.ProcessedCount) == 1 })
		waitFor(t, func() bool {
			j, _ := jobStore.GetJob(context.Background(), queued.Id)
			return j.Status == jobModel.JobStatusComplete
		})

		want := []jobModel.JobStatus{jobModel.JobStatusQueued, jobModel.JobStatusRunning, jobModel.JobStatusRunning, jobModel.JobStatusComplete}
		got := jobStore.statuses(queued.Id)
		if len(got) != len(want) {
			t.Fatalf("expected saves %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("save %d: expected %s, got %s", i, want[i], got[i])
			}
		}
		final, _ := jobStore.GetJob(context.Background(), queued.Id)
		if final.EndTime.IsZero() {
			t.Error("expected end time on the finished job")
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("workers did not stop within timeout")
		}
		select {
		case <-dispatcherDone:
		case <-time.After(2 * time.Second):
			t.Error("dispatcher did not stop within timeout")
		}
		if c := atomic.LoadInt64(&currentWorkerCount); c != 0 {
			t.Errorf("expected no workers, got %d", c)
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	resetPool(t, 30*time.Millisecond, 0)
	jobSvc := &job.Service{JobChannel: make(chan jobModel.Job)}
	InitServices(jobSvc, &MockRagService{})
	wg := &sync.WaitGroup{}
	workerWaitGroup = wg
	stopWorkerChannel = make(chan bool)

	createWorker()
	waitFor(t, func() bool { return atomic.LoadInt64(&currentWorkerCount) == 0 })
	wg.Wait()
}

func TestWorker_IdleKeepsMinimum(t *testing.T) {
	resetPool(t, 20*time.Millisecond, 1)
	jobSvc := &job.Service{JobChannel: make(chan jobModel.Job)}
	InitServices(jobSvc, &MockRagService{})
	wg := &sync.WaitGroup{}
	workerWaitGroup = wg
	stopWorkerChannel = make(chan bool)

	createWorker()
	createWorker()
	waitFor(t, func() bool { return atomic.LoadInt64(&currentWorkerCount) == 1 })

	// several idle periods later the last worker is still there
	time.Sleep(100 * time.Millisecond)
	if c := atomic.LoadInt64(&currentWorkerCount); c != 1 {
		t.Errorf("expected the minimum of 1 worker, got %d", c)
	}
	close(stopWorkerChannel)
	wg.Wait()
}

func docIdentity() docModel.DocumentIdentity {
	return docModel.NewIdentity("dana", "/docs/report.pdf", "finance")
}

type panickingRag struct{}

func (panickingRag) ProcessJob(ctx context.Context, j jobModel.Job, step documents.StepFunc) jobModel.Job {
	panic("nil index")
}

func TestExecuteJob_PanicBecomesJobError(t *testing.T) {
	jobStore := &MockJobStore{}
	InitServices(&job.Service{JobStore: jobStore}, panickingRag{})

	executeJob(jobModel.Job{Id: "job-p", JobType: jobModel.JobTypeExtract, Identity: docIdentity()})

	final, ok := jobStore.GetJob(context.Background(), "job-p")
	if !ok {
		t.Fatal("expected the job to be saved")
	}
	if final.Status != jobModel.JobStatusError || final.CurrentStep != jobModel.Error {
		t.Errorf("expected an errored job, got %s/%s", final.Status, final.CurrentStep)
	}
	if final.Error.Kind != "Internal" || !final.Error.Retry {
		t.Errorf("unexpected job error %+v", final.Error)
	}
}
