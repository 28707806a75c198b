package models

import (
	"time"

	"github.com/kartoza/stats-workbench/internal/backend"
	"github.com/kartoza/stats-workbench/internal/generator"
)

// GenerateRequest asks for a synthetic dataset; omitted parameters keep
// their form defaults
type GenerateRequest struct {
	generator.Params
	Seed *int64 `json:"seed,omitempty"`
}

// GenerateResponse carries the dataset at the top level so it can be
// posted straight back to /api/analyze
type GenerateResponse struct {
	generator.DataSet
	Params  generator.Params  `json:"params"`
	Seed    *int64            `json:"seed,omitempty"`
	Preview []generator.Point `json:"preview"`
}

// CalculateRequest is a calculator form submission
type CalculateRequest struct {
	Num1      *float64 `json:"num1" validate:"required"`
	Num2      *float64 `json:"num2" validate:"required"`
	Operation string   `json:"operation" validate:"required,oneof=add subtract multiply divide"`
}

// CalculateResponse adds display strings to the calculator's reply
type CalculateResponse struct {
	backend.CalculationResult
	Display    string `json:"display"`
	Expression string `json:"expression"`
}

// StatsRequest accepts either raw comma-separated input or parsed numbers
type StatsRequest struct {
	Input   *string   `json:"input,omitempty"`
	Numbers []float64 `json:"numbers,omitempty"`
}

// StatsResponse echoes the parsed numbers next to the statistics
type StatsResponse struct {
	backend.StatsResult
	Numbers []float64 `json:"numbers"`
}

// DatasetsResponse lists stored datasets
type DatasetsResponse struct {
	Datasets []string `json:"datasets"`
}

// ChatMessageRequest is a user turn
type ChatMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ChatSessionResponse is a transcript as the UI renders it
type ChatSessionResponse struct {
	ID        string                `json:"id"`
	Messages  []backend.ChatMessage `json:"messages"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ChatSendResponse holds the entries a turn appended. Error is set when
// the assistant entry is the fallback reply.
type ChatSendResponse struct {
	Messages []backend.ChatMessage `json:"messages"`
	Error    string                `json:"error,omitempty"`
}

// ServiceStatus is the liveness of one remote service
type ServiceStatus struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
	Up      bool   `json:"up"`
}

// StatusResponse reports every remote service
type StatusResponse struct {
	Services []ServiceStatus `json:"services"`
}

// InfoResponse describes the running server
type InfoResponse struct {
	Version          string `json:"version"`
	CalculatorURL    string `json:"calculatorUrl"`
	StatsURL         string `json:"statsUrl"`
	AnalyticsURL     string `json:"analyticsUrl"`
	ChatURL          string `json:"chatUrl"`
	ChatModel        string `json:"chatModel"`
	ChatConfigured   bool   `json:"chatConfigured"`
	RequestTimeoutMs int64  `json:"requestTimeoutMs"`
}
