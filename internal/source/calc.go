package source

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// calcTimeout bounds a single evaluation; expressions are user input.
const calcTimeout = 50 * time.Millisecond

var (
	// calcAllowed restricts input to arithmetic before it reaches the JS engine.
	calcAllowed = regexp.MustCompile(`^[0-9\s.+\-*/%^()]+$`)
	calcHasOp   = regexp.MustCompile(`[0-9.)]\s*[+\-*/%^]\s*[0-9.(\-]`)
)

// CalcSource evaluates arithmetic expressions.
type CalcSource struct{}

func (CalcSource) Produce(ctx context.Context, req Request) ([]Item, error) {
	expr := strings.TrimSpace(req.Keyword)
	if !IsExpression(expr) {
		return nil, nil
	}

	value, ok := Evaluate(ctx, expr)
	if !ok {
		return nil, nil
	}
	result := formatNumber(value)
	return []Item{{
		Title:    result,
		Subtitle: expr + " =",
		Text:     expr,
		Exec:     result,
	}}, nil
}

// IsExpression reports whether s looks like arithmetic worth evaluating.
func IsExpression(s string) bool {
	return s != "" && calcAllowed.MatchString(s) && calcHasOp.MatchString(s)
}

// Evaluate runs expr in a fresh goja runtime. The runtime is interrupted
// after calcTimeout or when ctx ends.
func Evaluate(ctx context.Context, expr string) (float64, bool) {
	vm := goja.New()
	timer := time.AfterFunc(calcTimeout, func() { vm.Interrupt("timeout") })
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() { vm.Interrupt("canceled") })
	defer stop()

	v, err := vm.RunString(strings.ReplaceAll(expr, "^", "**"))
	if err != nil {
		return 0, false
	}
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 12, 64)
}
