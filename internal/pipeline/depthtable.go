package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	appconfig "usdgflow/config"
	"usdgflow/internal/depth"
	"usdgflow/logger"
	"usdgflow/models"
	"usdgflow/reader"
)

// DepthTable builds the on-demand depth/spread view across all exchanges.
// Exchanges are queried concurrently; within one exchange pairs are fetched
// sequentially with a fixed delay so public endpoints are not hammered.
type DepthTable struct {
	clients   []reader.Client
	pairDelay time.Duration
	log       *logger.Log
}

func NewDepthTable(clients []reader.Client, cfg appconfig.DepthConfig) *DepthTable {
	delay := time.Duration(cfg.PairDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 350 * time.Millisecond
	}
	return &DepthTable{
		clients:   clients,
		pairDelay: delay,
		log:       logger.GetLogger(),
	}
}

// Build fetches every USDG pair's orderbook and computes its depth row.
// Pairs with an empty book side are dropped; a failing exchange contributes
// nothing rather than failing the table.
func (d *DepthTable) Build(ctx context.Context) []models.DepthRow {
	var (
		mu   sync.Mutex
		rows []models.DepthRow
		wg   sync.WaitGroup
	)
	for _, client := range d.clients {
		wg.Add(1)
		go func(client reader.Client) {
			defer wg.Done()
			exchangeRows := d.buildExchange(ctx, client)
			mu.Lock()
			rows = append(rows, exchangeRows...)
			mu.Unlock()
		}(client)
	}
	wg.Wait()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Exchange != rows[j].Exchange {
			return rows[i].Exchange < rows[j].Exchange
		}
		return rows[i].Pair < rows[j].Pair
	})
	return rows
}

func (d *DepthTable) buildExchange(ctx context.Context, client reader.Client) []models.DepthRow {
	log := d.log.WithComponent("depth_table").WithFields(logger.Fields{"exchange": client.Exchange()})

	pairs, err := client.USDGPairs(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list pairs")
		return nil
	}

	var rows []models.DepthRow
	for i, pair := range pairs {
		if i > 0 {
			select {
			case <-ctx.Done():
				return rows
			case <-time.After(d.pairDelay):
			}
		}
		book, err := client.Orderbook(ctx, pair.Symbol)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"pair": pair.Symbol}).Warn("failed to fetch orderbook")
			continue
		}
		if pair.Display != "" {
			book.Pair = pair.Display
		}
		row, ok := depth.Calculate(book)
		if !ok {
			log.WithFields(logger.Fields{"pair": book.Pair}).Debug("skipping pair with empty book side")
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
