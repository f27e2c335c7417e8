package workers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/service"
	"github.com/gatehouse-io/gatehouse/pkg/events"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// ExtractionWorker consumes verified-signup events and runs the profile
// extraction cascade. Instances share a queue group so a given signup is
// extracted once across replicas.
type ExtractionWorker struct {
	bus      events.Subscriber
	extracts *service.ExtractService
	workers  int
	jobs     chan events.SignupVerifiedEvent
	wg       sync.WaitGroup
}

func NewExtractionWorker(bus events.Subscriber, extracts *service.ExtractService, workers int) *ExtractionWorker {
	if workers < 1 {
		workers = 1
	}
	return &ExtractionWorker{
		bus:      bus,
		extracts: extracts,
		workers:  workers,
		jobs:     make(chan events.SignupVerifiedEvent, workers*4),
	}
}

// Start subscribes and launches the worker pool. Workers drain until ctx is
// cancelled; Stop waits for in-flight extractions.
func (w *ExtractionWorker) Start(ctx context.Context) error {
	err := w.bus.QueueSubscribe(events.SignupVerified, "extractors", func(msg *events.Message) {
		var evt events.SignupVerifiedEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			logger.Error("Failed to decode verified event", "error", err)
			return
		}
		select {
		case w.jobs <- evt:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}

	logger.Info("Extraction worker started", "workers", w.workers)
	return nil
}

func (w *ExtractionWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-w.jobs:
			jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := w.extracts.ExtractForSignup(jobCtx, evt.PendingID, evt.AccountID, evt.Domain); err != nil {
				logger.Error("Extraction job failed",
					"pending_id", evt.PendingID, "domain", evt.Domain, "error", err)
			}
			cancel()
		}
	}
}

// Stop waits for workers to finish their current jobs.
func (w *ExtractionWorker) Stop() {
	w.wg.Wait()
}
