package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"tipid/internal/core"
	"tipid/internal/engine"
	"tipid/internal/log"
	"tipid/internal/session"
	"tipid/internal/store"
)

// PriceStorage is what PriceService needs from the store.
type PriceStorage interface {
	store.PriceStore
	store.ExpenseStore
}

type PriceService struct {
	store  PriceStorage
	logger *log.Logger
}

func NewPriceService(st PriceStorage, logger *log.Logger) *PriceService {
	return &PriceService{store: st, logger: logger.WithComponent(log.ComponentPrice)}
}

// Compare sets what the owner paid for item over the last month against
// the market reference price.
func (s *PriceService) Compare(ctx context.Context, sess session.Session, item string, now time.Time) Result[engine.PriceComparison] {
	item = strings.TrimSpace(item)
	if item == "" {
		return fail[engine.PriceComparison]("Please enter an item")
	}

	market, err := s.store.MarketPrice(ctx, item)
	if errors.Is(err, core.ErrNotFound) {
		return fail[engine.PriceComparison]("No market price for " + item)
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load market price", err, log.OpRead, sess.UserID)
		return fail[engine.PriceComparison]("Failed to compare prices")
	}

	from := core.StartOfDay(now.AddDate(0, -1, 0))
	expenses, err := s.store.ListExpenses(ctx, sess.UserID, store.ExpenseFilter{
		From:     from,
		Category: market.Category,
	})
	if err != nil {
		logFailure(ctx, s.logger, "Failed to fetch expenses", err, log.OpList, sess.UserID)
		return fail[engine.PriceComparison]("Failed to compare prices")
	}

	paid, found := engine.AverageItemPrice(expenses, market.Category, market.Item, from)
	if !found {
		return fail[engine.PriceComparison]("No recent purchases of " + market.Item)
	}

	c := engine.ComparePrice(paid, market.Price)
	c.Item = market.Item
	c.Category = market.Category
	return ok(c.Message, c)
}

// MarketPrices lists the reference prices.
func (s *PriceService) MarketPrices(ctx context.Context) Result[[]core.MarketPrice] {
	prices, err := s.store.ListMarketPrices(ctx)
	if err != nil {
		logFailure(ctx, s.logger, "Failed to list market prices", err, log.OpList, "")
		return fail[[]core.MarketPrice]("Failed to fetch market prices")
	}
	return ok("Market prices fetched successfully", prices)
}
