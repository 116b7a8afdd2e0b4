package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipid/internal/core"
)

func TestPriceCompare(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")

	assert.Equal(t, "Please enter an item", f.prices.Compare(f.ctx, f.sess(u), "  ", testNow).Message)
	assert.Equal(t, "No market price for caviar", f.prices.Compare(f.ctx, f.sess(u), "caviar", testNow).Message)
	assert.Equal(t, "No recent purchases of Tomatoes", f.prices.Compare(f.ctx, f.sess(u), "tomatoes", testNow).Message)

	for _, e := range []core.Expense{
		{Amount: 121, Description: "Tomatoes 1kg", OccurredOn: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{Amount: 500, Description: "Tomatoes 1kg", OccurredOn: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	} {
		e.OwnerID = u.ID
		e.Category = "Food & Dining"
		_, err := f.store.CreateExpense(f.ctx, e)
		require.NoError(t, err)
	}

	r := f.prices.Compare(f.ctx, f.sess(u), "tomatoes", testNow)
	require.True(t, r.Success, r.Message)
	assert.Equal(t, "Tomatoes", r.Data.Item)
	assert.Equal(t, 121.0, r.Data.UserPrice)
	assert.Equal(t, 10, r.Data.VariancePercent)
	assert.True(t, r.Data.Overpaying)
	assert.Equal(t, "You are paying 10% more than average.", r.Message)
}

func TestMarketPrices(t *testing.T) {
	f := newFixture(t)
	r := f.prices.MarketPrices(f.ctx)
	require.True(t, r.Success)
	assert.NotEmpty(t, r.Data)
}
