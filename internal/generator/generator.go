package generator

import (
	"math/rand"
	"time"
)

// Documented input ranges for the data generator form
const (
	MinSampleSize  = 10
	MaxSampleSize  = 1000
	MinCorrelation = -1.0
	MaxCorrelation = 1.0
	MinNoise       = 0.0
	MaxNoise       = 5.0

	// xSpan is the width of the uniform interval x values are drawn from
	xSpan = 10.0
)

// Source supplies uniform random values in [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Params controls the shape of a generated dataset
type Params struct {
	SampleSize  int     `json:"sampleSize" validate:"gte=10,lte=1000"`
	Correlation float64 `json:"correlation" validate:"gte=-1,lte=1"`
	Noise       float64 `json:"noise" validate:"gte=0,lte=5"`
}

// DefaultParams returns the values the data generator form starts with
func DefaultParams() Params {
	return Params{
		SampleSize:  100,
		Correlation: 0.7,
		Noise:       0.3,
	}
}

// DataSet is a bivariate sample where X[i] pairs with Y[i]
type DataSet struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Point is a single indexed (x, y) pair
type Point struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Len returns the number of pairs in the dataset
func (d DataSet) Len() int {
	return len(d.X)
}

// Preview returns up to k leading points of the dataset
func (d DataSet) Preview(k int) []Point {
	if k > d.Len() {
		k = d.Len()
	}
	if k < 0 {
		k = 0
	}
	points := make([]Point, k)
	for i := 0; i < k; i++ {
		points[i] = Point{Index: i, X: d.X[i], Y: d.Y[i]}
	}
	return points
}

// Generate builds a dataset whose y values depend linearly on x with
// strength p.Correlation plus uniform jitter of half-width p.Noise.
//
// Three values are drawn from src per point, in order: the x value, the
// uncorrelated part of the base, and the jitter. Parameters are used as
// given; a non-positive sample size produces an empty dataset.
func Generate(p Params, src Source) DataSet {
	n := p.SampleSize
	if n < 0 {
		n = 0
	}
	r := p.Correlation
	k := p.Noise

	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = src.Float64() * xSpan
		base := r*x[i] + (1-r)*src.Float64()*xSpan
		jitter := src.Float64()*k*2 - k
		y[i] = base + jitter
	}

	return DataSet{X: x, Y: y}
}

// NewSource returns a deterministic source for the given seed
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewRandomSource returns a source seeded from the wall clock
func NewRandomSource() *rand.Rand {
	return NewSource(time.Now().UnixNano())
}
