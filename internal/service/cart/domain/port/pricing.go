// internal/service/cart/domain/port/pricing.go
package port

import "context"

// PricingFact 是定价规则的输入事实。
type PricingFact struct {
	ProductID string  `json:"productId"`
	BasePrice float64 `json:"basePrice"`
	Quantity  int     `json:"quantity"`
	IsVIP     bool    `json:"isVip"`
}

// PricingEngine 在结算时为每条商品行计算冻结进订单的单价。
// 由规则引擎适配器实现，规则表达式可以在不改代码的情况下调整。
type PricingEngine interface {
	Quote(ctx context.Context, fact PricingFact) (unitPrice float64, err error)
}
