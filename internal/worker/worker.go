package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/job"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/internal/rag"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

var (
	_jobService        *job.Service
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	dispatcherChannel  chan bool
	dispatcherDone     chan struct{}
	currentWorkerCount int64
	logger             = logger_i.NewLogger("WorkerPool")
	_ragService        rag.Service
	minWorkerCount     = config.MinWorkerCount
	idleWorkerTimeout  = config.IdleWorkerTimeout
)

func InitServices(jobService *job.Service, ragService rag.Service) {
	_jobService = jobService
	_ragService = ragService
	dispatcherChannel = jobService.DispatcherChannel
}

func InitWorkerPool(stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	idleWorkerTimeout = config.GetDuration("IDLE_WORKER_TIMEOUT", idleWorkerTimeout)
	logger.Info("Initializing worker pool")
	createWorker()
	dispatcherDone = make(chan struct{})
	go dispatcher(dispatcherChannel, stopWorkerChannel, dispatcherDone)
}

// dispatcher works on the channels it was started with, so a later
// InitServices never changes what a running dispatcher reads.
func dispatcher(signals <-chan bool, stop <-chan bool, done chan<- struct{}) {
	defer close(done)
	logger.Info("Dispatcher started")
	for {
		select {
		case <-signals:
			if atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
				logger.Info("Creating new worker", "workerCount", atomic.LoadInt64(&currentWorkerCount))
				createWorker()
			}
		case <-stop:
			return
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go worker()
}

func worker() {
	idle := time.NewTimer(idleWorkerTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-_jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			executeJob(currentJob)
			idle.Reset(idleWorkerTimeout)

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-idle.C:
			if tryRetire() {
				releaseWorker("Idle worker timeout")
				return
			}
			idle.Reset(idleWorkerTimeout)
		}
	}
}
