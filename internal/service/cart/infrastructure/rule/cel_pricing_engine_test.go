package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/service/cart/domain/port"
)

func TestDefaultRuleUsesBasePrice(t *testing.T) {
	engine, err := NewCELPricingEngine("")
	require.NoError(t, err)

	price, err := engine.Quote(context.Background(), port.PricingFact{
		ProductID: "p1",
		BasePrice: 19.9,
		Quantity:  3,
	})
	require.NoError(t, err)
	assert.InDelta(t, 19.9, price, 1e-9)
}

func TestQuantityDiscountRule(t *testing.T) {
	engine, err := NewCELPricingEngine("quantity >= 10 ? base_price * 0.9 : base_price")
	require.NoError(t, err)

	price, err := engine.Quote(context.Background(), port.PricingFact{BasePrice: 100, Quantity: 10})
	require.NoError(t, err)
	assert.InDelta(t, 90, price, 1e-9)

	price, err = engine.Quote(context.Background(), port.PricingFact{BasePrice: 100, Quantity: 9})
	require.NoError(t, err)
	assert.InDelta(t, 100, price, 1e-9)
}

func TestVIPRule(t *testing.T) {
	engine, err := NewCELPricingEngine("is_vip ? base_price * 0.85 : base_price")
	require.NoError(t, err)

	price, err := engine.Quote(context.Background(), port.PricingFact{BasePrice: 200, Quantity: 1, IsVIP: true})
	require.NoError(t, err)
	assert.InDelta(t, 170, price, 1e-9)
}

func TestInvalidRuleRejectedAtCompile(t *testing.T) {
	_, err := NewCELPricingEngine("base_price *")
	assert.Error(t, err)

	_, err = NewCELPricingEngine("unknown_var * 2.0")
	assert.Error(t, err)
}

func TestRuleMustEvaluateToDouble(t *testing.T) {
	_, err := NewCELPricingEngine("quantity")
	assert.Error(t, err, "an int-typed rule must be rejected")

	_, err = NewCELPricingEngine("product_id")
	assert.Error(t, err, "a string-typed rule must be rejected")
}

func TestNegativePriceRejected(t *testing.T) {
	engine, err := NewCELPricingEngine("base_price - 50.0")
	require.NoError(t, err)

	_, err = engine.Quote(context.Background(), port.PricingFact{BasePrice: 10, Quantity: 1})
	assert.Error(t, err)
}
