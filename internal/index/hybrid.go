package index

import (
	"sort"
	"sync"

	"github.com/zorli-ai/docvault/internal/domain"
)

// Config tunes the hybrid search behavior. The similarity cutoffs and
// gate ratios are empirical; defaults come from retrieval quality runs
// against short entity-bearing queries.
type Config struct {
	// Dimensions is the expected embedding width. Vectors of any other
	// width are kept out of the vector pass and the entry degrades to
	// lexical-only scoring.
	Dimensions int

	// VectorMinSim admits a chunk into the candidate set.
	// VectorBypassSim is the similarity at which a match is strong
	// enough to skip the lexical gate entirely.
	VectorMinSim    float64
	VectorBypassSim float64

	VectorWeight      float64
	KeywordWeight     float64
	KeywordOnlyWeight float64

	// StrictGateRatio is the fraction of significant query terms a
	// vector candidate below the bypass similarity must match.
	// RelaxedGateRatio applies to candidates with no vector signal.
	StrictGateRatio  float64
	RelaxedGateRatio float64

	// CandidateCap bounds the vector candidate set before fusion.
	CandidateCap int
}

// DefaultConfig provides the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Dimensions:        1536,
		VectorMinSim:      0.45,
		VectorBypassSim:   0.70,
		VectorWeight:      0.7,
		KeywordWeight:     0.3,
		KeywordOnlyWeight: 0.55,
		StrictGateRatio:   0.6,
		RelaxedGateRatio:  0.5,
		CandidateCap:      200,
	}
}

// Entry is one indexed chunk. Filename rides along so results carry
// their citation without a lookup.
type Entry struct {
	ChunkID     string
	DocumentID  string
	WorkspaceID string
	Filename    string
	ChunkIndex  int
	Content     string
	Embedding   []float32
}

// Result is a ranked search hit. Similarity is 0 when the hit had no
// vector signal, KeywordScore is 0 when it had no lexical signal.
type Result struct {
	Entry
	Similarity   float64
	KeywordScore float64
	Score        float64
}

// SearchParams scopes one search. WorkspaceID is mandatory; DocumentIDs
// optionally restricts results to an allowlist of documents.
type SearchParams struct {
	WorkspaceID    string
	Query          string
	QueryEmbedding []float32
	Limit          int
	DocumentIDs    []string
}

const defaultSearchLimit = 10

// tenantIndex holds one workspace's chunks. entries is the primary
// store; docChunks and postings are derived and must stay consistent
// with it.
type tenantIndex struct {
	entries   map[string]*Entry
	docChunks map[string]map[string]struct{}
	postings  map[string]map[string]struct{}
}

func newTenantIndex() *tenantIndex {
	return &tenantIndex{
		entries:   make(map[string]*Entry),
		docChunks: make(map[string]map[string]struct{}),
		postings:  make(map[string]map[string]struct{}),
	}
}

// Index is the in-memory hybrid retrieval engine: a per-workspace
// brute-force vector store joined with an inverted keyword index.
// It is a rebuildable cache; the relational store stays the source
// of truth.
type Index struct {
	mu        sync.RWMutex
	cfg       Config
	tenants   map[string]*tenantIndex
	docTenant map[string]string
}

// New creates an empty index. Zero-valued config fields fall back to
// defaults.
func New(cfg Config) *Index {
	def := DefaultConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.VectorMinSim <= 0 {
		cfg.VectorMinSim = def.VectorMinSim
	}
	if cfg.VectorBypassSim <= 0 {
		cfg.VectorBypassSim = def.VectorBypassSim
	}
	if cfg.VectorWeight <= 0 {
		cfg.VectorWeight = def.VectorWeight
	}
	if cfg.KeywordWeight <= 0 {
		cfg.KeywordWeight = def.KeywordWeight
	}
	if cfg.KeywordOnlyWeight <= 0 {
		cfg.KeywordOnlyWeight = def.KeywordOnlyWeight
	}
	if cfg.StrictGateRatio <= 0 {
		cfg.StrictGateRatio = def.StrictGateRatio
	}
	if cfg.RelaxedGateRatio <= 0 {
		cfg.RelaxedGateRatio = def.RelaxedGateRatio
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = def.CandidateCap
	}

	return &Index{
		cfg:       cfg,
		tenants:   make(map[string]*tenantIndex),
		docTenant: make(map[string]string),
	}
}

// AddChunks upserts entries into the index. Re-adding an existing chunk
// ID first withdraws its old posting contributions, so a replace never
// leaves stale keys behind. Entries whose embedding width differs from
// the configured dimension are indexed lexical-only.
func (idx *Index) AddChunks(entries []Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range entries {
		e := entries[i]
		if e.ChunkID == "" || e.WorkspaceID == "" || e.DocumentID == "" {
			continue
		}
		if len(e.Embedding) > 0 && len(e.Embedding) != idx.cfg.Dimensions {
			e.Embedding = nil
		}

		ti := idx.tenants[e.WorkspaceID]
		if ti == nil {
			ti = newTenantIndex()
			idx.tenants[e.WorkspaceID] = ti
		}

		if _, exists := ti.entries[e.ChunkID]; exists {
			ti.removeChunk(e.ChunkID)
		}

		stored := e
		ti.entries[e.ChunkID] = &stored

		chunks := ti.docChunks[e.DocumentID]
		if chunks == nil {
			chunks = make(map[string]struct{})
			ti.docChunks[e.DocumentID] = chunks
		}
		chunks[e.ChunkID] = struct{}{}

		for _, key := range postingKeys(e.Content) {
			ids := ti.postings[key]
			if ids == nil {
				ids = make(map[string]struct{})
				ti.postings[key] = ids
			}
			ids[e.ChunkID] = struct{}{}
		}

		idx.docTenant[e.DocumentID] = e.WorkspaceID
	}
}

// RemoveDocument deletes every chunk of a document from the index.
// Unknown documents are a no-op, so removal is idempotent.
func (idx *Index) RemoveDocument(documentID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	workspaceID, ok := idx.docTenant[documentID]
	if !ok {
		return
	}
	ti := idx.tenants[workspaceID]
	if ti == nil {
		delete(idx.docTenant, documentID)
		return
	}

	for chunkID := range ti.docChunks[documentID] {
		ti.removeChunk(chunkID)
	}
	delete(ti.docChunks, documentID)
	delete(idx.docTenant, documentID)

	if len(ti.entries) == 0 {
		delete(idx.tenants, workspaceID)
	}
}

// removeChunk deletes one chunk and its posting contributions. Caller
// holds the write lock.
func (ti *tenantIndex) removeChunk(chunkID string) {
	e, ok := ti.entries[chunkID]
	if !ok {
		return
	}

	for _, key := range postingKeys(e.Content) {
		ids := ti.postings[key]
		if ids == nil {
			continue
		}
		delete(ids, chunkID)
		if len(ids) == 0 {
			delete(ti.postings, key)
		}
	}

	if chunks := ti.docChunks[e.DocumentID]; chunks != nil {
		delete(chunks, chunkID)
	}
	delete(ti.entries, chunkID)
}

type candidate struct {
	entry        *Entry
	sim          float64
	hasVector    bool
	keyHits      int
	matchedTerms int
}

// Search runs the two-pass hybrid retrieval: a brute-force cosine scan
// admits semantic candidates, an inverted-index pass scores literal
// term overlap, and a lexical gate drops vector candidates that share
// too few of the query's significant terms before the scores fuse.
func (idx *Index) Search(params SearchParams) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ti := idx.tenants[params.WorkspaceID]
	if ti == nil {
		return nil
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var allow map[string]struct{}
	if len(params.DocumentIDs) > 0 {
		allow = make(map[string]struct{}, len(params.DocumentIDs))
		for _, id := range params.DocumentIDs {
			allow[id] = struct{}{}
		}
	}

	tokens := significantTokens(params.Query)
	querySingles := uniqueTokens(tokens)
	queryBigrams := uniqueTokens(bigramTokens(tokens))
	totalKeys := len(querySingles) + len(queryBigrams)

	candidates := make(map[string]*candidate)

	// Vector pass: admit anything at or above the relaxed cutoff, keep
	// only the strongest CandidateCap.
	if len(params.QueryEmbedding) > 0 {
		hits := make([]*candidate, 0, 64)
		for _, e := range ti.entries {
			if allow != nil {
				if _, ok := allow[e.DocumentID]; !ok {
					continue
				}
			}
			if len(e.Embedding) == 0 {
				continue
			}
			sim, err := domain.CosineSimilarity(params.QueryEmbedding, e.Embedding)
			if err != nil {
				continue
			}
			if sim < idx.cfg.VectorMinSim {
				continue
			}
			hits = append(hits, &candidate{entry: e, sim: sim, hasVector: true})
		}

		sort.Slice(hits, func(i, j int) bool {
			if hits[i].sim != hits[j].sim {
				return hits[i].sim > hits[j].sim
			}
			return hits[i].entry.ChunkID < hits[j].entry.ChunkID
		})
		if len(hits) > idx.cfg.CandidateCap {
			hits = hits[:idx.cfg.CandidateCap]
		}
		for _, h := range hits {
			candidates[h.entry.ChunkID] = h
		}
	}

	// Lexical pass: count posting hits per chunk. Single-term matches
	// are tracked separately because the gate reasons about terms, not
	// bigrams.
	collect := func(key string, isTerm bool) {
		for chunkID := range ti.postings[key] {
			e := ti.entries[chunkID]
			if e == nil {
				continue
			}
			if allow != nil {
				if _, ok := allow[e.DocumentID]; !ok {
					continue
				}
			}
			c := candidates[chunkID]
			if c == nil {
				c = &candidate{entry: e}
				candidates[chunkID] = c
			}
			c.keyHits++
			if isTerm {
				c.matchedTerms++
			}
		}
	}
	for _, key := range querySingles {
		collect(key, true)
	}
	for _, key := range queryBigrams {
		collect(key, false)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		kwScore := 0.0
		if totalKeys > 0 {
			kwScore = float64(c.keyHits) / float64(totalKeys)
		}
		termRatio := 1.0
		if len(querySingles) > 0 {
			termRatio = float64(c.matchedTerms) / float64(len(querySingles))
		}

		var score float64
		switch {
		case c.hasVector && c.keyHits > 0:
			if c.sim < idx.cfg.VectorBypassSim && termRatio < idx.cfg.StrictGateRatio {
				continue
			}
			score = idx.cfg.VectorWeight*c.sim + idx.cfg.KeywordWeight*kwScore
		case c.hasVector:
			if c.sim < idx.cfg.VectorBypassSim && termRatio < idx.cfg.StrictGateRatio {
				continue
			}
			score = c.sim
		default:
			if termRatio < idx.cfg.RelaxedGateRatio {
				continue
			}
			score = kwScore * idx.cfg.KeywordOnlyWeight
		}

		results = append(results, Result{
			Entry:        *c.entry,
			Similarity:   c.sim,
			KeywordScore: kwScore,
			Score:        score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Stats summarizes index occupancy.
type Stats struct {
	Workspaces int
	Documents  int
	Chunks     int
}

// Stats reports current index occupancy across all workspaces.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s := Stats{Workspaces: len(idx.tenants), Documents: len(idx.docTenant)}
	for _, ti := range idx.tenants {
		s.Chunks += len(ti.entries)
	}
	return s
}
