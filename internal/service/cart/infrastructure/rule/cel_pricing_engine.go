// internal/service/cart/infrastructure/rule/cel_pricing_engine.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"bazaar/internal/service/cart/domain/port"
)

// DefaultRule 不打折，直接用目录价。
const DefaultRule = "base_price"

// CELPricingEngine 是 port.PricingEngine 的 CEL 实现。
// 定价规则是一个 CEL 表达式，对每条商品行求值得到冻结进订单的单价，
// 运营可以在不发版的情况下调整规则，例如：
//
//	quantity >= 10 ? base_price * 0.9 : base_price
//
// 这是典型的适配器：把表达式引擎的 API 适配到我们自己的领域接口。
type CELPricingEngine struct {
	program cel.Program
}

// NewCELPricingEngine 编译规则表达式。规则必须求值为 double。
func NewCELPricingEngine(ruleExpr string) (*CELPricingEngine, error) {
	if ruleExpr == "" {
		ruleExpr = DefaultRule
	}

	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.StringType),
		cel.Variable("base_price", cel.DoubleType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("is_vip", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(ruleExpr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid pricing rule %q: %w", ruleExpr, issues.Err())
	}
	if ast.OutputType() != cel.DoubleType {
		return nil, fmt.Errorf("pricing rule %q must evaluate to a double, got %s", ruleExpr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing rule program: %w", err)
	}

	return &CELPricingEngine{program: program}, nil
}

// Quote 对一条商品行求值单价。
func (e *CELPricingEngine) Quote(ctx context.Context, fact port.PricingFact) (float64, error) {
	out, _, err := e.program.ContextEval(ctx, map[string]interface{}{
		"product_id": fact.ProductID,
		"base_price": fact.BasePrice,
		"quantity":   int64(fact.Quantity),
		"is_vip":     fact.IsVIP,
	})
	if err != nil {
		return 0, fmt.Errorf("pricing rule evaluation failed: %w", err)
	}

	price, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from pricing rule: %T", out.Value())
	}
	if price < 0 {
		return 0, fmt.Errorf("pricing rule produced a negative price: %f", price)
	}
	return price, nil
}
