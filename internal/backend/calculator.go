package backend

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Operation is an arithmetic operation the calculator service understands
type Operation string

const (
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	OpMultiply Operation = "multiply"
	OpDivide   Operation = "divide"
)

// Operations lists the supported operations in display order
var Operations = []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide}

// Valid reports whether op is one of the supported operations
func (op Operation) Valid() bool {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return true
	}
	return false
}

// Symbol returns the operator shown between the operands
func (op Operation) Symbol() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "×"
	default:
		return "÷"
	}
}

// CalculationRequest is the body of POST /calculate
type CalculationRequest struct {
	Num1      float64   `json:"num1"`
	Num2      float64   `json:"num2"`
	Operation Operation `json:"operation"`
}

// CalculationResult is the body of a successful POST /calculate
type CalculationResult struct {
	Result    float64 `json:"result"`
	Operation string  `json:"operation"`
	Num1      float64 `json:"num1"`
	Num2      float64 `json:"num2"`
}

// Display returns the result as it is shown to the user
func (r CalculationResult) Display() string {
	return FormatNumber(r.Result)
}

// Expression renders the whole calculation, e.g. "6 ÷ 3 = 2"
func (r CalculationResult) Expression() string {
	return fmt.Sprintf("%s %s %s = %s",
		FormatNumber(r.Num1), Operation(r.Operation).Symbol(), FormatNumber(r.Num2), FormatNumber(r.Result))
}

// FormatNumber renders v in plain decimal form, switching to exponent
// notation only for very large or very small magnitudes
func FormatNumber(v float64) string {
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	// exponents carry no zero padding: 1e-7, not 1e-07
	if i := strings.IndexByte(s, 'e'); i >= 0 && i+2 < len(s) {
		exp := strings.TrimLeft(s[i+2:], "0")
		if exp == "" {
			exp = "0"
		}
		s = s[:i+2] + exp
	}
	return s
}

// Calculator talks to the Python calculator API
type Calculator struct {
	endpoint
}

// NewCalculator creates a calculator adapter for the given base URL
func NewCalculator(baseURL string, opts ...Option) *Calculator {
	return &Calculator{
		endpoint: newEndpoint("calculator", baseURL, "Failed to connect to the calculation service", opts),
	}
}

// CheckStatus reports whether the service answers its liveness probe
func (c *Calculator) CheckStatus(ctx context.Context) bool {
	return c.checkStatus(ctx)
}

// Calculate asks the service to apply op to num1 and num2
func (c *Calculator) Calculate(ctx context.Context, num1, num2 float64, op Operation) (*CalculationResult, error) {
	if !op.Valid() {
		return nil, invalid("unsupported operation %q", op)
	}
	if !finite(num1) || !finite(num2) {
		return nil, invalid("Please enter both numbers")
	}

	body, err := jsonBody(CalculationRequest{Num1: num1, Num2: num2, Operation: op})
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, request{
		operation:   "calculate",
		method:      http.MethodPost,
		path:        "/calculate",
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, c.apiError(resp, "Calculation failed", "detail")
	}

	var result CalculationResult
	if err := c.decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
