package mailqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/edudashpro/billing-service/internal/pkg/env"
)

// Manager manages the global mail queue and background tasks
type Manager struct {
	queue       *Queue
	retryTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global mail queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 2
		if v, err := strconv.Atoi(env.GetEnv("MAIL_QUEUE_WORKERS", "")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed mail queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the mail queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[MailQueue Manager] Starting mail queue and background tasks")

	m.queue.Start()

	retryInterval := 2 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("MAIL_RETRY_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		retryInterval = time.Duration(v) * time.Minute
	}

	m.retryTicker = time.NewTicker(retryInterval)
	m.wg.Add(1)
	go m.retryWorker(retryInterval)

	log.Info("[MailQueue Manager] Started successfully")
}

// Stop stops the mail queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[MailQueue Manager] Stopping mail queue and background tasks...")

	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[MailQueue Manager] Stopped successfully")
}

// retryWorker runs periodically to re-enqueue failed deliveries
func (m *Manager) retryWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[MailQueue Manager] Started retry worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[MailQueue Manager] Retry worker stopping")
			return
		case <-m.retryTicker.C:
			log.Debug("[MailQueue Manager] Running retry check for failed deliveries")
			if err := m.queue.RetryFailedDeliveries(); err != nil {
				log.Errorf("[MailQueue Manager] Error retrying failed deliveries: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
