package retrieval

import (
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fitcoach-platform/fitcoach/internal/metrics"
)

// ErrIndexNotReady is returned while the index has not yet been built from
// the store. Callers degrade to keyword-only retrieval.
var ErrIndexNotReady = errors.New("vector index not ready")

// Entry is one vector to index, tagged with the message id it came from.
type Entry struct {
	ID     int64
	Vector []float32
}

type Hit struct {
	ID    int64
	Score float64
}

// indexState is an immutable snapshot. Readers load it atomically and never
// see a partially applied write; ids[i] corresponds to vectors[i].
type indexState struct {
	ids     []int64
	vectors [][]float32
}

// VectorIndex is a flat inner-product index over L2-normalized vectors.
// Inner product over unit vectors equals cosine similarity, so scores land
// in [-1, 1]. Writes take the mutex; searches are lock-free snapshots.
type VectorIndex struct {
	dims  int
	mu    sync.Mutex
	state atomic.Pointer[indexState]
	built atomic.Bool
}

func NewVectorIndex(dims int) *VectorIndex {
	idx := &VectorIndex{dims: dims}
	idx.state.Store(&indexState{})
	return idx
}

// Ready reports whether an initial build has completed. An empty store still
// counts as ready after a successful rebuild.
func (idx *VectorIndex) Ready() bool {
	return idx.built.Load()
}

func (idx *VectorIndex) Size() int {
	return len(idx.state.Load().ids)
}

// Add appends one vector. Vectors with the wrong dimension or zero norm are
// rejected; the index must stay consistent with what search expects.
func (idx *VectorIndex) Add(id int64, vector []float32) error {
	normalized, err := normalize(vector, idx.dims)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := idx.state.Load()
	next := &indexState{
		ids:     append(append([]int64(nil), old.ids...), id),
		vectors: append(append([][]float32(nil), old.vectors...), normalized),
	}
	idx.state.Store(next)
	metrics.IndexSize.Set(float64(len(next.ids)))
	return nil
}

// Rebuild replaces the whole index in one atomic swap. Entries that cannot
// be normalized are skipped rather than failing the rebuild; a message with
// a bad vector just drops out of semantic recall.
func (idx *VectorIndex) Rebuild(entries []Entry) {
	next := &indexState{
		ids:     make([]int64, 0, len(entries)),
		vectors: make([][]float32, 0, len(entries)),
	}
	for _, e := range entries {
		normalized, err := normalize(e.Vector, idx.dims)
		if err != nil {
			continue
		}
		next.ids = append(next.ids, e.ID)
		next.vectors = append(next.vectors, normalized)
	}

	idx.mu.Lock()
	idx.state.Store(next)
	idx.built.Store(true)
	idx.mu.Unlock()
	metrics.IndexSize.Set(float64(len(next.ids)))
}

// Search returns up to k hits sorted by descending similarity. Results are
// computed against the snapshot current at call time.
func (idx *VectorIndex) Search(query []float32, k int) ([]Hit, error) {
	if !idx.built.Load() {
		return nil, ErrIndexNotReady
	}
	normalized, err := normalize(query, idx.dims)
	if err != nil {
		return nil, err
	}

	state := idx.state.Load()
	hits := make([]Hit, 0, len(state.ids))
	for i, vec := range state.vectors {
		hits = append(hits, Hit{ID: state.ids[i], Score: dot(normalized, vec)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func normalize(vector []float32, dims int) ([]float32, error) {
	if len(vector) != dims {
		return nil, errors.New("vector dimension mismatch")
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, errors.New("zero-norm vector")
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
