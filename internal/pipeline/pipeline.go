package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"usdgflow/internal/history"
	"usdgflow/internal/volume"
	"usdgflow/logger"
	"usdgflow/models"
	"usdgflow/reader"
)

// Pipeline runs the daily collection cycle: fetch every exchange, merge,
// compute the rolling metrics snapshot, and append it to the history log.
type Pipeline struct {
	clients []reader.Client
	store   *history.Store
	log     *logger.Log
}

func NewPipeline(clients []reader.Client, store *history.Store) *Pipeline {
	return &Pipeline{
		clients: clients,
		store:   store,
		log:     logger.GetLogger(),
	}
}

// FetchSeries pulls the daily volume series from every exchange in parallel.
// A failing exchange degrades to an empty series so one venue outage cannot
// poison the merged view.
func (p *Pipeline) FetchSeries(ctx context.Context) []models.ExchangeSeries {
	results := make([]models.ExchangeSeries, len(p.clients))
	var wg sync.WaitGroup
	for i, client := range p.clients {
		wg.Add(1)
		go func(i int, client reader.Client) {
			defer wg.Done()
			series, err := client.AggregatedVolume(ctx)
			if err != nil {
				p.log.WithComponent("volume_pipeline").WithError(err).WithFields(logger.Fields{
					"exchange": client.Exchange(),
				}).Error("volume fetch failed, degrading to empty series")
				results[i] = models.ExchangeSeries{Exchange: client.Exchange()}
				return
			}
			results[i] = series
		}(i, client)
	}
	wg.Wait()
	return results
}

// FetchUnified fetches all exchanges and merges them into one series.
func (p *Pipeline) FetchUnified(ctx context.Context) models.UnifiedSeries {
	return volume.Aggregate(p.FetchSeries(ctx))
}

// RunDaily executes one collection cycle. A log write failure aborts only
// this run; the next scheduled cycle starts fresh.
func (p *Pipeline) RunDaily(ctx context.Context) error {
	runID := uuid.New().String()
	started := time.Now()
	log := p.log.WithComponent("volume_pipeline").WithFields(logger.Fields{"run_id": runID})
	log.Info("starting daily collection run")

	unified := p.FetchUnified(ctx)
	snapshot := volume.Compute(unified)

	if err := p.store.Append(snapshot); err != nil {
		log.WithError(err).Error("failed to append metrics snapshot")
		return err
	}

	logger.LogPerformanceEntry(log, "volume_pipeline", "daily_run", time.Since(started), logger.Fields{
		"volume_7d":        snapshot.Volume7Day,
		"volume_30d":       snapshot.Volume30Day,
		"active_exchanges": snapshot.ActiveExchanges,
		"total_pairs":      snapshot.TotalPairs,
	})
	return nil
}
