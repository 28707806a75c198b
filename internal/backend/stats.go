package backend

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// StatsRequest is the body of POST /stats
type StatsRequest struct {
	Numbers []float64 `json:"numbers"`
}

// StatsResult holds the descriptive statistics computed by the R service
type StatsResult struct {
	Mean     Number `json:"mean"`
	Median   Number `json:"median"`
	Mode     Number `json:"mode"`
	Min      Number `json:"min"`
	Max      Number `json:"max"`
	Range    Number `json:"range"`
	StdDev   Number `json:"std_dev"`
	Variance Number `json:"variance"`
	Sum      Number `json:"sum"`
	Count    Number `json:"count"`
}

// ParseNumbers splits comma-separated input into numbers. The first token
// that is not a finite number aborts parsing with a message naming it.
func ParseNumbers(input string) ([]float64, error) {
	if strings.TrimSpace(input) == "" {
		return nil, invalid("Please enter some numbers")
	}

	tokens := strings.Split(input, ",")
	numbers := make([]float64, 0, len(tokens))
	for _, token := range tokens {
		value := strings.TrimSpace(token)
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || !finite(n) {
			return nil, invalid("%q is not a valid number", value)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// Stats talks to the R statistics API
type Stats struct {
	endpoint
}

// NewStats creates a statistics adapter for the given base URL
func NewStats(baseURL string, opts ...Option) *Stats {
	return &Stats{
		endpoint: newEndpoint("stats", baseURL, "Failed to connect to the statistics service", opts),
	}
}

// CheckStatus reports whether the service answers its liveness probe
func (s *Stats) CheckStatus(ctx context.Context) bool {
	return s.checkStatus(ctx)
}

// Describe computes descriptive statistics for numbers
func (s *Stats) Describe(ctx context.Context, numbers []float64) (*StatsResult, error) {
	if len(numbers) == 0 {
		return nil, invalid("Please enter some numbers")
	}
	for _, n := range numbers {
		if !finite(n) {
			return nil, invalid("%q is not a valid number", strconv.FormatFloat(n, 'g', -1, 64))
		}
	}

	body, err := jsonBody(StatsRequest{Numbers: numbers})
	if err != nil {
		return nil, err
	}

	resp, err := s.send(ctx, request{
		operation:   "stats",
		method:      http.MethodPost,
		path:        "/stats",
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		// No error field means the service is treated as unreachable
		apiErr := s.apiError(resp, "", "error")
		if apiErr.Message == "" {
			return nil, &ConnectError{Service: s.service, Message: s.connectMessage}
		}
		return nil, apiErr
	}

	var result StatsResult
	if err := s.decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
