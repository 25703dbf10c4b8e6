package broker

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/admf/trader/pkg/types"
)

func TestFixedSlippageWidensAgainstTrader(t *testing.T) {
	s := FixedSlippage{BasisPoints: decimal.NewFromInt(100)} // 1%
	buy := s.Adjust(decimal.NewFromInt(100), types.Buy, decimal.NewFromInt(1))
	sell := s.Adjust(decimal.NewFromInt(100), types.Sell, decimal.NewFromInt(1))

	if !buy.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("expected buy price 101, got %s", buy)
	}
	if !sell.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("expected sell price 99, got %s", sell)
	}
}

func TestPercentageCommissionClampsToMinMax(t *testing.T) {
	c := PercentageCommission{Rate: decimal.NewFromFloat(0.001), Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(5)}

	tiny := c.Compute(decimal.NewFromInt(1), decimal.NewFromInt(10))
	if !tiny.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected min clamp of 1, got %s", tiny)
	}

	huge := c.Compute(decimal.NewFromInt(100000), decimal.NewFromInt(100))
	if !huge.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected max clamp of 5, got %s", huge)
	}
}

func TestTieredCommissionUsesHighestMatchingTier(t *testing.T) {
	c := TieredCommission{Schedule: []TierSchedule{
		{MinQty: decimal.Zero, Rate: decimal.NewFromFloat(0.01)},
		{MinQty: decimal.NewFromInt(100), Rate: decimal.NewFromFloat(0.005)},
	}}

	small := c.Compute(decimal.NewFromInt(10), decimal.NewFromInt(1))
	if !small.Equal(decimal.NewFromFloat(0.1)) {
		t.Fatalf("expected base tier rate, got %s", small)
	}

	large := c.Compute(decimal.NewFromInt(200), decimal.NewFromInt(1))
	if !large.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected discounted tier rate, got %s", large)
	}
}
