package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kartoza/stats-workbench/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	service, operation, outcome string
}

type recorder struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recorder) observe(service, operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{service, operation, outcome})
}

func TestObserverOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CalculationRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Num2 == 0 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Cannot divide by zero"}`))
			return
		}
		w.Write([]byte(`{"result":1,"operation":"divide","num1":1,"num2":1}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	calc := NewCalculator(srv.URL, WithObserver(rec.observe))

	_, err := calc.Calculate(context.Background(), 1, 1, OpDivide)
	require.NoError(t, err)
	_, err = calc.Calculate(context.Background(), 1, 0, OpDivide)
	require.Error(t, err)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	_, err = NewCalculator(closedURL, WithObserver(rec.observe)).Calculate(context.Background(), 1, 1, OpAdd)
	require.Error(t, err)

	assert.Equal(t, []observation{
		{"calculator", "calculate", OutcomeOK},
		{"calculator", "calculate", OutcomeAPIError},
		{"calculator", "calculate", OutcomeConnectError},
	}, rec.seen)
}

func TestNewUsesConfiguredURLs(t *testing.T) {
	var mu sync.Mutex
	paths := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path] = true
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Backends = config.Backends{
		CalculatorBaseURL: srv.URL + "/calc",
		StatsBaseURL:      srv.URL + "/stats-api",
		AnalyticsBaseURL:  srv.URL + "/r",
		ChatBaseURL:       srv.URL + "/v1",
	}
	svc := New(cfg)

	ctx := context.Background()
	assert.True(t, svc.Calculator.CheckStatus(ctx))
	assert.True(t, svc.Stats.CheckStatus(ctx))
	assert.True(t, svc.Analytics.CheckStatus(ctx))
	assert.True(t, svc.Chat.CheckStatus(ctx))

	assert.Equal(t, map[string]bool{"/calc/": true, "/stats-api/": true, "/r/": true, "/v1/models": true}, paths)
	assert.Same(t, svc.Calculator.client, svc.Chat.client)
}

func TestFieldMessage(t *testing.T) {
	assert.Equal(t, "boom", fieldMessage([]byte(`{"error":"boom"}`), "error"))
	assert.Equal(t, "boom", fieldMessage([]byte(`{"error":["boom"]}`), "error"))
	assert.Equal(t, "deep", fieldMessage([]byte(`{"error":{"message":"deep"}}`), "error", "message"))
	assert.Empty(t, fieldMessage([]byte(`{"error":42}`), "error"))
	assert.Empty(t, fieldMessage([]byte(`not json`), "error"))
	assert.Empty(t, fieldMessage([]byte(`{"error":"x"}`)))
}

func TestPlumberScalars(t *testing.T) {
	var payload struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		S Text   `json:"s"`
		F Flag   `json:"f"`
		G Flag   `json:"g"`
	}
	err := json.Unmarshal([]byte(`{"a":1.5,"b":[2.5],"c":null,"s":["y ~ x"],"f":[true],"g":false}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, Number(1.5), payload.A)
	assert.Equal(t, Number(2.5), payload.B)
	assert.Equal(t, Number(0), payload.C)
	assert.Equal(t, Text("y ~ x"), payload.S)
	assert.True(t, bool(payload.F))
	assert.False(t, bool(payload.G))

	var n Number
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &n))
	assert.Error(t, json.Unmarshal([]byte(`"five"`), &n))

	out, err := json.Marshal(struct {
		N Number `json:"n"`
	}{3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(out))
}
