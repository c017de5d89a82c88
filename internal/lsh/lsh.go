// Package lsh implements the LSH index storage for the Euclid-LSH
// recommender: a random-projection hash of each row's sparse feature
// vector, bucketed per table for approximate nearest-neighbor search, and
// exposed as a Push-mixable model.
//
// Grounded on original_source/jubatus/core/recommender/euclid_lsh.cpp:
// calc_norm/calc_projection/calculate_lsh for the write path,
// neighbor_row/similar_row's sign-flip pairing for the read path, and the
// constructor's validation order (reproduced in internal/config.LSH).
package lsh

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dreamware/jubatus/internal/codec"
	"github.com/dreamware/jubatus/internal/config"
	"github.com/dreamware/jubatus/internal/hashutil"
	"github.com/dreamware/jubatus/internal/jerrors"
	"github.com/dreamware/jubatus/internal/version"
)

// SparseVector is a sparse feature vector: feature name -> weight.
type SparseVector map[string]float64

// Candidate is one result of a similarity search: a row id and its
// (possibly sign-flipped) squared Euclidean distance estimate.
type Candidate struct {
	ID       string
	Distance float64
}

// row is the index's internal record for one inserted id.
type row struct {
	ID    string
	Code  []float64 // length = HashNum*TableNum, divided by BinWidth
	Norm  float64
	Stamp version.Stamp
}

func (r row) clone() row {
	code := make([]float64, len(r.Code))
	copy(code, r.Code)
	return row{ID: r.ID, Code: code, Norm: r.Norm, Stamp: r.Stamp}
}

// poolEntry is one pending write awaiting propagation through Pull.
type poolEntry struct {
	Row row
}

// Index is the LSH index storage: a row map, per-table inverted bucket
// indices, and an owner-keyed diff pool, satisfying
// internal/mixable.Push[[]PackedRow].
type Index struct {
	mu      sync.RWMutex
	cfg     config.LSH
	owner   version.Owner
	nextVer version.Version

	rows    map[string]*row
	buckets []map[string]map[string]struct{} // per table: signature -> id set

	poolMu sync.Mutex
	pool   map[version.Owner][]poolEntry
	stable map[version.Owner]version.Version

	projMu   sync.Mutex
	projLRU  *lru.Cache[uint32, []float64]
	projPlain map[uint32][]float64
}

// New validates cfg (returning jerrors.InvalidParameter on the first
// violated constraint, in euclid_lsh.cpp's constructor order) and
// constructs an empty index stamping local writes under owner.
func New(owner version.Owner, cfg config.LSH) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idx := &Index{
		cfg:     cfg,
		owner:   owner,
		rows:    make(map[string]*row),
		buckets: make([]map[string]map[string]struct{}, cfg.TableNum),
		pool:    make(map[version.Owner][]poolEntry),
		stable:  make(map[version.Owner]version.Version),
	}
	for t := range idx.buckets {
		idx.buckets[t] = make(map[string]map[string]struct{})
	}
	if cfg.RetainProjection {
		c, err := lru.New[uint32, []float64](4096)
		if err != nil {
			return nil, jerrors.Wrap(jerrors.Storage, "lsh.New", err, "failed to allocate projection cache")
		}
		idx.projLRU = c
	} else {
		idx.projPlain = make(map[uint32][]float64)
	}
	return idx, nil
}

// dims returns the total hash dimension (hash_num * table_num).
func (idx *Index) dims() int {
	return int(idx.cfg.HashNum) * int(idx.cfg.TableNum)
}

// getProjection returns the deterministic Gaussian projection vector for
// seed, generating it on first use. Grounded on calc_projection: each
// feature's projection is seeded purely by the feature name's hash, never
// by the index's own configured seed, so the same feature always yields
// the same projection across processes and restarts.
func (idx *Index) getProjection(seed uint32) []float64 {
	idx.projMu.Lock()
	defer idx.projMu.Unlock()

	if idx.projLRU != nil {
		if v, ok := idx.projLRU.Get(seed); ok {
			return v
		}
	} else if v, ok := idx.projPlain[seed]; ok {
		return v
	}

	src := rand.NewSource(uint64(seed))
	gauss := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	n := idx.dims()
	proj := make([]float64, n)
	for i := range proj {
		proj[i] = gauss.Rand()
	}

	if idx.projLRU != nil {
		idx.projLRU.Add(seed, proj)
	} else {
		idx.projPlain[seed] = proj
	}
	return proj
}

// calculateHash projects sfv onto the index's hash_num*table_num Gaussian
// directions and divides by bin_width, reproducing
// euclid_lsh::calculate_lsh.
func (idx *Index) calculateHash(sfv SparseVector) []float64 {
	n := idx.dims()
	code := make([]float64, n)
	for feature, val := range sfv {
		if val == 0 {
			continue
		}
		seed := hashutil.Seed32(feature)
		proj := idx.getProjection(seed)
		for j := 0; j < n; j++ {
			code[j] += val * proj[j]
		}
	}
	for j := range code {
		code[j] /= idx.cfg.BinWidth
	}
	return code
}

// calcNorm returns the exact Euclidean norm of sfv, reproducing
// euclid_lsh::calc_norm.
func calcNorm(sfv SparseVector) float64 {
	sum := 0.0
	for _, v := range sfv {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// tableSignature returns the bucket signature for one table's hash_num
// slice: the concatenation of the integer parts of each dimension.
func tableSignature(slice []float64) string {
	var b strings.Builder
	for i, v := range slice {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(math.Floor(v)), 10))
	}
	return b.String()
}

// bucketsOf returns, for each table, the signature the row's code falls
// into.
func (idx *Index) bucketsOf(code []float64) []string {
	hn := int(idx.cfg.HashNum)
	sigs := make([]string, idx.cfg.TableNum)
	for t := range sigs {
		sigs[t] = tableSignature(code[t*hn : (t+1)*hn])
	}
	return sigs
}

// insertLocked adds id to every table's bucket index for code. Caller must
// hold idx.mu.
func (idx *Index) insertLocked(id string, code []float64) {
	for t, sig := range idx.bucketsOf(code) {
		set, ok := idx.buckets[t][sig]
		if !ok {
			set = make(map[string]struct{})
			idx.buckets[t][sig] = set
		}
		set[id] = struct{}{}
	}
}

// removeLocked drops id from every table's bucket index for code. Caller
// must hold idx.mu.
func (idx *Index) removeLocked(id string, code []float64) {
	for t, sig := range idx.bucketsOf(code) {
		set, ok := idx.buckets[t][sig]
		if !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(idx.buckets[t], sig)
		}
	}
}

// SetRow inserts or replaces the row at id with sfv's hash, stamping it
// under the index's local owner, and returns the stamp installed.
func (idx *Index) SetRow(id string, sfv SparseVector) version.Stamp {
	code := idx.calculateHash(sfv)
	norm := calcNorm(sfv)

	idx.mu.Lock()
	idx.nextVer++
	stamp := version.Stamp{Owner: idx.owner, Version: idx.nextVer}

	if old, ok := idx.rows[id]; ok {
		idx.removeLocked(id, old.Code)
	}
	r := row{ID: id, Code: code, Norm: norm, Stamp: stamp}
	idx.rows[id] = &r
	idx.insertLocked(id, code)
	idx.mu.Unlock()

	idx.poolMu.Lock()
	idx.pool[idx.owner] = append(idx.pool[idx.owner], poolEntry{Row: r.clone()})
	idx.poolMu.Unlock()

	return stamp
}

// Len returns the number of indexed rows.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rows)
}

// distance2 returns the estimated inner product <q,r> of two rows from
// their stored codes; search combines it with the exact norms into the
// squared Euclidean distance ||q-r||^2 = ||q||^2 + ||r||^2 - 2<q,r>.
// <q,r> is recovered from
// the averaged elementwise product of the two codes scaled back up by
// bin_width^2 (each projection component is an independent unit-Gaussian
// estimator of the true inner product, so averaging across all
// hash_num*table_num dimensions reduces variance).
func (idx *Index) distance2(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	sum := 0.0
	for j := range a {
		sum += a[j] * b[j]
	}
	inner := sum / float64(len(a)) * idx.cfg.BinWidth * idx.cfg.BinWidth
	return inner
}

type perturbation struct {
	dim   int
	delta int
	score float64
}

// multiProbeSignatures returns the exact bucket signature for slice plus
// up to probeNum neighboring bucket signatures, each differing from the
// exact signature in exactly one dimension, ordered by how close the
// query sits to that dimension's bucket boundary (closest first).
// probe_num=0 returns only the exact bucket.
func multiProbeSignatures(slice []float64, probeNum int) []string {
	exact := tableSignature(slice)
	if probeNum <= 0 {
		return []string{exact}
	}

	perturbations := make([]perturbation, 0, 2*len(slice))
	for j, v := range slice {
		fl := math.Floor(v)
		frac := v - fl
		perturbations = append(perturbations,
			perturbation{dim: j, delta: -1, score: frac},
			perturbation{dim: j, delta: +1, score: 1 - frac},
		)
	}
	sort.Slice(perturbations, func(i, j int) bool { return perturbations[i].score < perturbations[j].score })

	if probeNum > len(perturbations) {
		probeNum = len(perturbations)
	}

	seen := map[string]struct{}{exact: {}}
	sigs := []string{exact}
	floors := make([]int64, len(slice))
	for j, v := range slice {
		floors[j] = int64(math.Floor(v))
	}
	for _, p := range perturbations[:probeNum] {
		parts := make([]string, len(slice))
		for j, f := range floors {
			if j == p.dim {
				f += int64(p.delta)
			}
			parts[j] = strconv.FormatInt(f, 10)
		}
		sig := strings.Join(parts, ",")
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		sigs = append(sigs, sig)
	}
	return sigs
}

// SimilarRow returns up to retNum rows nearest to sfv by estimated squared
// Euclidean distance, ascending (closest first). probe_num=0 searches only
// each table's exact bucket.
func (idx *Index) SimilarRow(sfv SparseVector, retNum int) []Candidate {
	code := idx.calculateHash(sfv)
	norm := calcNorm(sfv)
	return idx.search(code, norm, retNum)
}

// NeighborRow is SimilarRow's sign-flipped counterpart: it runs the
// identical candidate search and returns the same candidates in the same
// order (closest first), with each distance negated into a similarity
// score (higher means closer), reproducing
// euclid_lsh.cpp's neighbor_row (which calls similar_row and flips the
// sign of each returned distance rather than searching a different bucket
// set).
func (idx *Index) NeighborRow(sfv SparseVector, retNum int) []Candidate {
	code := idx.calculateHash(sfv)
	norm := calcNorm(sfv)
	out := idx.search(code, norm, retNum)
	for i := range out {
		out[i].Distance = -out[i].Distance
	}
	return out
}

func (idx *Index) search(code []float64, norm float64, retNum int) []Candidate {
	hn := int(idx.cfg.HashNum)

	idx.mu.RLock()
	candidateIDs := make(map[string]struct{})
	for t := 0; t < int(idx.cfg.TableNum); t++ {
		slice := code[t*hn : (t+1)*hn]
		for _, sig := range multiProbeSignatures(slice, int(idx.cfg.ProbeNum)) {
			for id := range idx.buckets[t][sig] {
				candidateIDs[id] = struct{}{}
			}
		}
	}

	out := make([]Candidate, 0, len(candidateIDs))
	for id := range candidateIDs {
		r := idx.rows[id]
		if r == nil {
			continue
		}
		inner := idx.distance2(code, r.Code)
		dist := norm*norm + r.Norm*r.Norm - 2*inner
		if dist < 0 {
			dist = 0
		}
		out = append(out, Candidate{ID: id, Distance: dist})
	}
	idx.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if retNum >= 0 && len(out) > retNum {
		out = out[:retNum]
	}
	return out
}

// GetArgument returns a clock recording the highest version installed per
// owner, to be sent to a peer as the argument of Pull.
func (idx *Index) GetArgument() (*version.Clock, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c := version.NewClock()
	for _, r := range idx.rows {
		c.Observe(r.Stamp.Owner, r.Stamp.Version)
	}
	return c, nil
}

// PackedRow is the wire representation of one pulled/pushed row.
type PackedRow struct {
	ID      string
	Code    []float64
	Norm    float64
	Owner   string
	Version uint64
}

// Pull serializes every pooled row whose stamp version exceeds what arg
// reports for that row's owner, satisfying internal/mixable.Push.
func (idx *Index) Pull(arg *version.Clock) ([]PackedRow, error) {
	idx.poolMu.Lock()
	defer idx.poolMu.Unlock()

	var out []PackedRow
	for owner, entries := range idx.pool {
		seen := version.Version(0)
		if arg != nil {
			seen = arg.Get(owner)
		}
		for _, e := range entries {
			if e.Row.Stamp.Version > seen {
				out = append(out, PackedRow{
					ID:      e.Row.ID,
					Code:    append([]float64(nil), e.Row.Code...),
					Norm:    e.Row.Norm,
					Owner:   string(e.Row.Stamp.Owner),
					Version: uint64(e.Row.Stamp.Version),
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Push installs every row in d whose stamp is strictly newer than the
// locally installed stamp for the same id, then folds it into the local
// pool so it propagates further on the next Pull.
func (idx *Index) Push(d []PackedRow) error {
	idx.mu.Lock()
	for _, pr := range d {
		stamp := version.Stamp{Owner: version.Owner(pr.Owner), Version: version.Version(pr.Version)}
		existing, ok := idx.rows[pr.ID]
		if ok && !existing.Stamp.Less(stamp) {
			continue
		}
		if ok {
			idx.removeLocked(pr.ID, existing.Code)
		}
		r := row{ID: pr.ID, Code: append([]float64(nil), pr.Code...), Norm: pr.Norm, Stamp: stamp}
		idx.rows[pr.ID] = &r
		idx.insertLocked(pr.ID, r.Code)

		idx.poolMu.Lock()
		idx.pool[stamp.Owner] = append(idx.pool[stamp.Owner], poolEntry{Row: r.clone()})
		idx.poolMu.Unlock()
	}
	idx.mu.Unlock()
	return nil
}

// Compact drops pool entries for owner whose version is <= upTo and
// records upTo as owner's stable version. Pull does not compact; pool
// entries are dropped only by this explicit call, which a caller makes
// once it knows the entries are no longer needed for propagation.
func (idx *Index) Compact(owner version.Owner, upTo version.Version) {
	idx.poolMu.Lock()
	defer idx.poolMu.Unlock()

	entries := idx.pool[owner]
	kept := entries[:0]
	for _, e := range entries {
		if e.Row.Stamp.Version > upTo {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(idx.pool, owner)
	} else {
		idx.pool[owner] = kept
	}
	if upTo > idx.stable[owner] {
		idx.stable[owner] = upTo
	}
}

// Clear empties the index, satisfying internal/mixable.Clearable.
func (idx *Index) Clear() {
	idx.mu.Lock()
	idx.rows = make(map[string]*row)
	for t := range idx.buckets {
		idx.buckets[t] = make(map[string]map[string]struct{})
	}
	idx.nextVer = 0
	idx.mu.Unlock()

	idx.poolMu.Lock()
	idx.pool = make(map[version.Owner][]poolEntry)
	idx.stable = make(map[version.Owner]version.Version)
	idx.poolMu.Unlock()
}

// packedRows is the msgpack-serialized form of the full row set, used by
// Pack/Unpack to persist and restore the index's hash side (the
// companion raw-feature-vector side store lives in the model adapter,
// which wraps this alongside it in a 2-element pack() envelope).
type packedRows struct {
	_msgpack struct{} `msgpack:",as_array"`
	Rows     []PackedRow
}

// Pack serializes the index's installed rows (not the diff pool) to the
// index-half of the model's pack() envelope.
func (idx *Index) Pack() ([]byte, error) {
	idx.mu.RLock()
	rows := make([]PackedRow, 0, len(idx.rows))
	for _, r := range idx.rows {
		rows = append(rows, PackedRow{
			ID:      r.ID,
			Code:    append([]float64(nil), r.Code...),
			Norm:    r.Norm,
			Owner:   string(r.Stamp.Owner),
			Version: uint64(r.Stamp.Version),
		})
	}
	idx.mu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return codec.Marshal(&packedRows{Rows: rows})
}

// Unpack restores rows packed by Pack into an otherwise-empty index.
func (idx *Index) Unpack(b []byte) error {
	var pr packedRows
	if err := codec.Unmarshal(b, &pr); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rows = make(map[string]*row, len(pr.Rows))
	for t := range idx.buckets {
		idx.buckets[t] = make(map[string]map[string]struct{})
	}
	for _, p := range pr.Rows {
		if len(p.Code) != idx.dims() {
			return jerrors.New(jerrors.LengthUnmatch, "lsh.Unpack",
				"row %q has %d hash dimensions, want %d", p.ID, len(p.Code), idx.dims())
		}
		r := row{ID: p.ID, Code: p.Code, Norm: p.Norm, Stamp: version.Stamp{Owner: version.Owner(p.Owner), Version: version.Version(p.Version)}}
		idx.rows[p.ID] = &r
		idx.insertLocked(p.ID, r.Code)
		if r.Stamp.Version > idx.nextVer && r.Stamp.Owner == idx.owner {
			idx.nextVer = r.Stamp.Version
		}
	}
	return nil
}

// String implements fmt.Stringer for debug logging.
func (idx *Index) String() string {
	return fmt.Sprintf("lsh.Index{rows=%d, tables=%d}", idx.Len(), idx.cfg.TableNum)
}
