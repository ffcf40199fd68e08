// Package tools provides the built-in tools available to manifests.
package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	dragonscale "github.com/ZanzyTHEbar/dragonscale-rag"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/adapters"
	"github.com/ZanzyTHEbar/dragonscale-rag/internal/logger"
)

// Builtin returns the built-in tools.
func Builtin() []*adapters.GoToolAdapter {
	return []*adapters.GoToolAdapter{
		adapters.NewGoToolAdapter(
			"search",
			PerformSearch,
			adapters.WithDescription("Performs a web search for a given query."),
			adapters.WithCategory("Web"),
			adapters.WithParameters(map[string]string{
				"arg0": "Search query string",
			}),
			adapters.WithReturns("Search results as a string."),
			adapters.WithExamples([]string{
				"search \"golang concurrency patterns\"",
				"search \"weather in New York\"",
			}),
			adapters.WithValidator(validateSearchInput),
		),
		adapters.NewGoToolAdapter(
			"calculate",
			PerformCalculation,
			adapters.WithDescription("Calculates a mathematical expression."),
			adapters.WithCategory("Math"),
			adapters.WithParameters(map[string]string{
				"arg0": "Mathematical expression to evaluate (e.g., '5*9')",
			}),
			adapters.WithReturns("Calculation result as a float."),
			adapters.WithExamples([]string{
				"calculate \"5*9\"",
				"calculate \"sqrt(16) + 2\"",
			}),
			adapters.WithValidator(validateCalculationInput),
		),
	}
}

// Register adds the built-in tools to ts.
func Register(ts *dragonscale.ToolSet) error {
	for _, tool := range Builtin() {
		if err := ts.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// PerformSearch simulates a web search.
// It expects an argument named "arg0" containing the query string.
func PerformSearch(ctx context.Context, input map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query, ok := input["arg0"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid or missing query argument (expected string at key 'arg0')")
	}
	logger.FromContext(ctx, logger.Nop()).Debug("Searching", "tool", "search", "query", query)

	return map[string]any{
		"output": fmt.Sprintf("Simulated search results for query: %s", query),
	}, nil
}

// PerformCalculation evaluates the arithmetic expression in "arg0".
func PerformCalculation(ctx context.Context, input map[string]any) (map[string]any, error) {
	expression, ok := input["arg0"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid or missing expression argument (expected string at key 'arg0')")
	}
	logger.FromContext(ctx, logger.Nop()).Debug("Calculating", "tool", "calculate", "expression", expression)

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, mathFunctions)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	value, err := expr.Evaluate(map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expression, err)
	}
	result, ok := value.(float64)
	if !ok {
		return nil, fmt.Errorf("expression %q is not numeric, got %T", expression, value)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return nil, fmt.Errorf("expression %q has no finite result", expression)
	}

	return map[string]any{"output": result}, nil
}

var mathFunctions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"pow": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		x, xok := args[0].(float64)
		y, yok := args[1].(float64)
		if !xok || !yok {
			return nil, fmt.Errorf("pow expects numeric arguments")
		}
		return math.Pow(x, y), nil
	},
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected a numeric argument, got %T", args[0])
		}
		return fn(x), nil
	}
}

// validateSearchInput validates the input for the search tool.
func validateSearchInput(input map[string]any) error {
	query, ok := input["arg0"]
	if !ok {
		return fmt.Errorf("missing search query (expected at key 'arg0')")
	}

	queryStr, ok := query.(string)
	if !ok {
		return fmt.Errorf("search query must be a string, got %T", query)
	}

	if len(queryStr) == 0 {
		return fmt.Errorf("search query cannot be empty")
	}

	if len(queryStr) > 1000 {
		return fmt.Errorf("search query too long (max 1000 characters)")
	}

	return nil
}

// validateCalculationInput validates the input for the calculation tool.
func validateCalculationInput(input map[string]any) error {
	expr, ok := input["arg0"]
	if !ok {
		return fmt.Errorf("missing expression (expected at key 'arg0')")
	}

	exprStr, ok := expr.(string)
	if !ok {
		return fmt.Errorf("expression must be a string, got %T", expr)
	}

	if len(exprStr) == 0 {
		return fmt.Errorf("expression cannot be empty")
	}

	if len(exprStr) > 100 {
		return fmt.Errorf("expression too long (max 100 characters)")
	}

	return nil
}
