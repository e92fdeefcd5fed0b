// Package rules evaluates the optional sale admission policy.
//
// The policy is a CEL expression configured by the operator, for example
//
//	downPayment >= totalAmount * 0.1 && nicheCount <= 10
//
// Available variables: totalAmount, downPayment, nichePrice (double) and
// nicheCount (int). The expression must evaluate to a bool.
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/types"
)

// SaleFacts are the values a policy can inspect.
type SaleFacts struct {
	TotalAmount types.Money
	DownPayment types.Money
	NichePrice  types.Money
	NicheCount  int
}

// SalePolicy is a compiled admission rule. A nil or empty policy admits everything.
type SalePolicy struct {
	source  string
	program cel.Program
}

// NewSalePolicy compiles expr. An empty expression yields a policy that always passes.
func NewSalePolicy(expr string) (*SalePolicy, error) {
	if expr == "" {
		return &SalePolicy{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("totalAmount", cel.DoubleType),
		cel.Variable("downPayment", cel.DoubleType),
		cel.Variable("nichePrice", cel.DoubleType),
		cel.Variable("nicheCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile sale policy: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("sale policy must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("sale policy program: %w", err)
	}

	return &SalePolicy{source: expr, program: prg}, nil
}

// Source returns the configured expression.
func (p *SalePolicy) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Check evaluates the policy. A false result is a SALE_POLICY_VIOLATION bad request.
func (p *SalePolicy) Check(f SaleFacts) error {
	if p == nil || p.program == nil {
		return nil
	}

	out, _, err := p.program.Eval(map[string]any{
		"totalAmount": f.TotalAmount.InexactFloat64(),
		"downPayment": f.DownPayment.InexactFloat64(),
		"nichePrice":  f.NichePrice.InexactFloat64(),
		"nicheCount":  int64(f.NicheCount),
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate sale policy: %w", err))
	}

	ok, isBool := out.Value().(bool)
	if !isBool || !ok {
		return apperror.NewBadRequest(apperror.CodeSalePolicyViolation, "Sale rejected by admission policy").
			WithDetail("policy", p.source)
	}
	return nil
}
