package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	maxSilhouetteSample = 1000
	maxAssignments      = 10000
)

type KMeansParams struct {
	K             int
	MaxIterations int
	Tolerance     float64
	Restarts      int
	Seed          int64
}

func (p *KMeansParams) defaults() {
	if p.Restarts <= 0 {
		p.Restarts = 5
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = 100
	}
	if p.Tolerance <= 0 {
		p.Tolerance = 1e-4
	}
}

// KMeansModel keeps the centroids in standardised space together with the scaler.
type KMeansModel struct {
	Features  []string    `json:"features"`
	Centroids [][]float64 `json:"centroids"`
	Scaler    Scaler      `json:"scaler"`
}

type ClusteringResult struct {
	Features    []string    `json:"features"`
	K           int         `json:"k"`
	Centroids   [][]float64 `json:"centroids"`
	Sizes       []int       `json:"sizes"`
	Inertia     float64     `json:"inertia"`
	Silhouette  float64     `json:"silhouette"`
	Iterations  int         `json:"iterations"`
	Converged   bool        `json:"converged"`
	Assignments []int       `json:"assignments"`
}

func (r *ClusteringResult) Metrics() map[string]float64 {
	return map[string]float64{"inertia": r.Inertia, "silhouette": r.Silhouette, "iterations": float64(r.Iterations)}
}

func nearest(centroids [][]float64, x []float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, cen := range centroids {
		d := floats.Distance(cen, x, 2)
		if d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

// Predict returns the cluster of a raw feature row.
func (m *KMeansModel) Predict(x []float64) (int, error) {
	if len(x) != len(m.Features) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(x), len(m.Features))
	}
	c, _ := nearest(m.Centroids, m.Scaler.Transform(x))
	return c, nil
}

// seedPlusPlus picks initial centroids with probability proportional to squared distance.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), x[rng.Intn(len(x))]...))
	d2 := make([]float64, len(x))
	for len(centroids) < k {
		var total float64
		for i, row := range x {
			_, d := nearest(centroids, row)
			d2[i] = d * d
			total += d2[i]
		}
		if total == 0 {
			// all remaining points coincide with a centroid
			centroids = append(centroids, append([]float64(nil), x[rng.Intn(len(x))]...))
			continue
		}
		target := rng.Float64() * total
		idx := len(x) - 1
		for i, v := range d2 {
			target -= v
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), x[idx]...))
	}
	return centroids
}

// KMeans clusters standardised rows with k-means++ seeding and Lloyd iterations.
func KMeans(x [][]float64, features []string, params KMeansParams) (*KMeansModel, *ClusteringResult, error) {
	params.defaults()
	n, p, k := len(x), len(features), params.K
	if k < 1 || p == 0 {
		return nil, nil, fmt.Errorf("%w: need k >= 1 and at least one feature", ErrInvalidInput)
	}
	if n < k || n < 2 {
		return nil, nil, fmt.Errorf("%w: %d rows for k=%d", ErrNotEnoughData, n, k)
	}
	if err := checkMatrix(x, p); err != nil {
		return nil, nil, err
	}
	scaler := FitScaler(x)
	xs := scaler.TransformAll(x)
	rng := rand.New(rand.NewSource(params.Seed))

	// keep the restart with the lowest inertia
	var best *lloydRun
	for r := 0; r < params.Restarts; r++ {
		run := lloyd(xs, seedPlusPlus(xs, k, rng), params)
		if best == nil || run.inertia < best.inertia {
			best = run
		}
	}
	centroids, assign := best.centroids, best.assign
	res := &ClusteringResult{
		Features:   append([]string(nil), features...),
		K:          k,
		Sizes:      best.sizes,
		Inertia:    best.inertia,
		Iterations: best.iterations,
		Converged:  best.converged,
	}
	res.Centroids = make([][]float64, k)
	for c := range centroids {
		res.Centroids[c] = scaler.Inverse(centroids[c])
	}
	res.Silhouette = silhouette(xs, assign, k, rng)
	if n > maxAssignments {
		res.Assignments = append([]int(nil), assign[:maxAssignments]...)
	} else {
		res.Assignments = append([]int(nil), assign...)
	}
	return &KMeansModel{Features: res.Features, Centroids: centroids, Scaler: scaler}, res, nil
}

type lloydRun struct {
	centroids  [][]float64
	assign     []int
	sizes      []int
	inertia    float64
	iterations int
	converged  bool
}

func lloyd(xs [][]float64, centroids [][]float64, params KMeansParams) *lloydRun {
	n, k, p := len(xs), len(centroids), len(xs[0])
	run := &lloydRun{centroids: centroids, assign: make([]int, n), sizes: make([]int, k)}
	dist := make([]float64, n)
	for run.iterations < params.MaxIterations {
		run.iterations++
		for i, row := range xs {
			run.assign[i], dist[i] = nearest(centroids, row)
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, p)
		}
		for i, row := range xs {
			floats.Add(sums[run.assign[i]], row)
			counts[run.assign[i]]++
		}
		shift := 0.0
		for c := 0; c < k; c++ {
			var next []float64
			if counts[c] == 0 {
				// reseed an empty cluster with the point farthest from its centroid
				far := floats.MaxIdx(dist)
				next = append([]float64(nil), xs[far]...)
				dist[far] = 0
			} else {
				next = sums[c]
				floats.Scale(1/float64(counts[c]), next)
			}
			shift = math.Max(shift, floats.Distance(next, centroids[c], 2))
			centroids[c] = next
		}
		if shift < params.Tolerance {
			run.converged = true
			break
		}
	}
	for i, row := range xs {
		c, d := nearest(centroids, row)
		run.assign[i] = c
		run.sizes[c]++
		run.inertia += d * d
	}
	return run
}

// silhouette averages the silhouette coefficient over a seeded sample of rows.
func silhouette(x [][]float64, assign []int, k int, rng *rand.Rand) float64 {
	if k < 2 {
		return 0
	}
	idx := rng.Perm(len(x))
	if len(idx) > maxSilhouetteSample {
		idx = idx[:maxSilhouetteSample]
	}
	var total float64
	for _, i := range idx {
		sum := make([]float64, k)
		cnt := make([]int, k)
		for _, j := range idx {
			if i == j {
				continue
			}
			sum[assign[j]] += floats.Distance(x[i], x[j], 2)
			cnt[assign[j]]++
		}
		own := assign[i]
		if cnt[own] == 0 {
			continue
		}
		a := sum[own] / float64(cnt[own])
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || cnt[c] == 0 {
				continue
			}
			b = math.Min(b, sum[c]/float64(cnt[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(idx))
}
