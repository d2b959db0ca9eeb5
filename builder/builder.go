// Package builder orchestrates the four build phases spec.md §4.6 names:
// ingest, embed, graph build, and finalize, with an optional compact/prune
// step in between. It owns the index directory's lock for the duration of
// a Build call.
package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ngmks/LEANN"
	"github.com/ngmks/LEANN/backend"
	"github.com/ngmks/LEANN/backend/hnsw"
	"github.com/ngmks/LEANN/backend/vamana"
	"github.com/ngmks/LEANN/embedding"
	"github.com/ngmks/LEANN/internal/atomicfile"
	"github.com/ngmks/LEANN/internal/dirlock"
	"github.com/ngmks/LEANN/internal/distfn"
	"github.com/ngmks/LEANN/internal/workerpool"
	"github.com/ngmks/LEANN/manifest"
	"github.com/ngmks/LEANN/passage"
)

// Builder builds a new index directory from a document source. It is not
// reusable across directories; create a new Builder per target dir/name.
type Builder struct {
	dir, name  string
	provider   embedding.Provider
	params     Params
	logger     *leann.Logger
	metrics    leann.MetricsCollector
	onProgress ProgressFunc
}

// New creates a Builder targeting dir/name. provider supplies both the
// model identity recorded in the manifest and the Encode calls made
// during the embed phase.
func New(dir, name string, provider embedding.Provider, params Params) *Builder {
	p := resolveParams(params)
	if p.Dimension == 0 {
		p.Dimension = provider.Dimension()
	}
	return &Builder{
		dir: dir, name: name, provider: provider, params: p,
		logger: leann.NoopLogger(), metrics: leann.NoopMetricsCollector{},
	}
}

// WithLogger attaches a structured logger.
func (b *Builder) WithLogger(l *leann.Logger) *Builder { b.logger = l; return b }

// WithMetrics attaches a metrics collector.
func (b *Builder) WithMetrics(m leann.MetricsCollector) *Builder { b.metrics = m; return b }

// WithProgress registers a callback invoked as Build advances through its
// phases. fn is called synchronously; it must not block for long.
func (b *Builder) WithProgress(fn ProgressFunc) *Builder { b.onProgress = fn; return b }

func (b *Builder) report(p Progress) {
	if b.onProgress != nil {
		b.onProgress(p)
	}
}

// Build runs all phases against documents and returns the finished
// manifest. A build that fails partway writes no manifest, so the
// directory cannot be opened for search. Build does not inspect or clean
// up such a directory: Create refuses to reuse an existing passage store
// file, so a later Build into the same dir and name fails until the
// leftover passage files are removed.
func (b *Builder) Build(ctx context.Context, documents DocumentSource) (*manifest.Meta, error) {
	if b.params.Dimension <= 0 {
		return nil, leann.NewError(leann.KindInvalidInput, "dimension must be positive", nil)
	}

	lock, err := dirlock.Acquire(b.dir)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	defer lock.Unlock()

	store, err := passage.Create(b.dir, b.name)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	defer store.Close()

	ids, skipped, err := b.ingest(ctx, store, documents)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, leann.NewError(leann.KindInvalidInput, "empty corpus", nil)
	}
	b.logger.LogBuildPhase(ctx, PhaseIngest.String(), len(ids), nil)

	if err := store.Finalize(); err != nil {
		return nil, fmt.Errorf("builder: finalize passages: %w", err)
	}

	texts := make([]string, len(ids))
	if err := store.Iter(func(node uint32, p passage.Passage) error {
		texts[node] = p.Text
		return nil
	}); err != nil {
		return nil, fmt.Errorf("builder: re-read passages: %w", err)
	}

	vectors, err := b.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	b.logger.LogBuildPhase(ctx, PhaseEmbed.String(), len(vectors), nil)

	graphFile := b.name + graphExtension(b.params.Backend)
	backendH, entryPoint, numLayers, err := b.buildGraph(ctx, vectors, graphFile)
	if err != nil {
		return nil, err
	}
	defer backendH.Close()
	b.logger.LogBuildPhase(ctx, PhaseGraphBuild.String(), len(vectors), nil)

	b.report(Progress{Phase: PhaseCompact, Done: 0, Total: 0})
	// Compaction has nothing to reclaim in a single-shot build: the
	// passage store is append-only and the graph was already built with
	// degree-bound pruning applied at insertion time. No compaction or
	// pruning pass runs: Params.Compact is copied into the manifest's
	// compact flag as given, and Params.Prune is not recorded.
	b.logger.LogBuildPhase(ctx, PhaseCompact.String(), 0, nil)

	embeddingsFile := ""
	if !b.params.Recompute {
		embeddingsFile = b.name + ".embeddings"
		if err := writeEmbeddingsBlob(b.dir, embeddingsFile, vectors); err != nil {
			return nil, fmt.Errorf("builder: write embeddings: %w", err)
		}
	}

	meta := b.buildManifest(len(ids), graphFile, embeddingsFile, entryPoint, numLayers, ids)
	if err := meta.Save(b.dir, b.name); err != nil {
		return nil, fmt.Errorf("builder: write manifest: %w", err)
	}
	b.report(Progress{Phase: PhaseFinalize, Done: len(ids), Total: len(ids)})
	b.logger.LogBuildPhase(ctx, PhaseFinalize.String(), len(ids), nil)

	if skipped > 0 {
		b.logger.InfoContext(ctx, "ingest skipped duplicate ids", "count", skipped)
	}
	b.metrics.RecordBuild(len(ids), 0, nil)
	return meta, nil
}

func (b *Builder) ingest(ctx context.Context, store *passage.Store, documents DocumentSource) ([]string, int, error) {
	var ids []string
	skipped := 0
	for {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		doc, ok, err := documents.Next()
		if err != nil {
			return nil, 0, fmt.Errorf("builder: document source: %w", err)
		}
		if !ok {
			break
		}

		id := doc.ID
		if id == "" {
			id = contentID(doc.Text)
		}
		if store.HasID(id) {
			if b.params.DuplicatePolicy == DuplicateAbort {
				b.logger.LogIngest(ctx, id, false, passage.ErrDuplicateID(id))
				return nil, 0, passage.ErrDuplicateID(id)
			}
			b.logger.LogIngest(ctx, id, true, nil)
			skipped++
			continue
		}

		if _, err := store.Append(id, doc.Text, doc.Metadata); err != nil {
			return nil, 0, fmt.Errorf("builder: ingest %q: %w", id, err)
		}
		ids = append(ids, id)
		b.report(Progress{Phase: PhaseIngest, Done: len(ids), Total: 0})
	}
	return ids, skipped, nil
}

// contentID derives a stable passage id from text when the caller doesn't
// supply one, so re-ingesting the same corpus is idempotent regardless of
// input order.
func contentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (b *Builder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := len(texts)
	vectors := make([][]float32, n)
	if n == 0 {
		return vectors, nil
	}

	pool := workerpool.New(b.params.Workers)
	err := pool.RunBatches(ctx, n, b.params.BatchSize, func(ctx context.Context, start, end int) error {
		batch := make([]string, end-start)
		for i, t := range texts[start:end] {
			batch[i] = b.prependDocumentTemplate(t)
		}
		vecs, err := embedding.EncodeWithRetry(ctx, b.provider, batch, embedding.KindDocument, b.params.RetryMax, leann.DefaultBackoff)
		if err != nil {
			b.metrics.RecordEmbedBatch(len(batch), 0, err)
			return fmt.Errorf("builder: embed [%d,%d): %w", start, end, err)
		}
		for i, v := range vecs {
			vectors[start+i] = v
		}
		b.metrics.RecordEmbedBatch(len(batch), 0, nil)
		b.report(Progress{Phase: PhaseEmbed, Done: end, Total: n})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// prependDocumentTemplate applies the configured document_prompt_template
// ahead of the embedding call, per spec 6's "prepend to document text
// before embedding". The searcher's recompute expander applies the same
// prepend to the same passage text, so recompute-mode and blob-mode
// embeddings stay identical for a given build.
func (b *Builder) prependDocumentTemplate(text string) string {
	if b.params.DocumentPromptTemplate == "" {
		return text
	}
	return b.params.DocumentPromptTemplate + text
}

func graphExtension(be manifest.Backend) string {
	if be == manifest.BackendVamana {
		return ".vamana"
	}
	return ".hnsw"
}

func (b *Builder) buildGraph(ctx context.Context, vectors [][]float32, graphFile string) (backend.Backend, uint32, int, error) {
	distFn, ok := distfn.Func(distfn.Metric(b.params.Metric))
	if !ok {
		return nil, 0, 0, leann.NewError(leann.KindInvalidInput, fmt.Sprintf("unrecognized metric %q", b.params.Metric), nil)
	}
	wrapped := func(x, y backend.Vector) float32 { return distFn(x, y) }
	buildParams := backend.BuildParams{Dimension: b.params.Dimension, Distance: wrapped, RandomSeed: b.params.RandomSeed}
	source := newMemVectorSource(vectors)
	path := b.dir + "/" + graphFile

	switch b.params.Backend {
	case manifest.BackendVamana:
		be := vamana.New(
			vamana.WithR(b.params.Vamana.R),
			vamana.WithLBuild(b.params.Vamana.LBuild),
			vamana.WithAlpha(b.params.Vamana.Alpha),
		)
		if err := be.Build(ctx, path, source, buildParams); err != nil {
			return nil, 0, 0, err
		}
		opened, err := be.Open(path)
		if err != nil {
			return nil, 0, 0, err
		}
		v := opened.(*vamana.Vamana)
		return v, v.EntryPoint(), 1, nil
	default:
		be := hnsw.New(
			hnsw.WithM(b.params.HNSW.M),
			hnsw.WithEFConstruction(b.params.HNSW.EFConstruction),
			hnsw.WithEFSearchDefault(b.params.HNSW.EFSearchDefault),
			hnsw.WithHeuristic(b.params.HNSW.Heuristic),
		)
		if err := be.Build(ctx, path, source, buildParams); err != nil {
			return nil, 0, 0, err
		}
		opened, err := be.Open(path)
		if err != nil {
			return nil, 0, 0, err
		}
		h := opened.(*hnsw.HNSW)
		return h, h.EntryPoint(), h.NumLayers(), nil
	}
}

func writeEmbeddingsBlob(dir, file string, vectors [][]float32) error {
	path := dir + "/" + file
	return atomicfile.Write(path, 0o644, func(w io.Writer) error {
		buf := make([]byte, 0, 4096)
		for _, v := range vectors {
			buf = buf[:0]
			for _, f := range v {
				bits := math.Float32bits(f)
				buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Builder) buildManifest(n int, graphFile, embeddingsFile string, entryPoint uint32, numLayers int, ids []string) *manifest.Meta {
	meta := &manifest.Meta{
		Version:     manifest.CurrentVersion,
		Backend:     b.params.Backend,
		NumPassages: n,
		Dimension:   b.params.Dimension,
		Metric:      b.params.Metric,
		ModelID:     b.provider.ModelID(),
		Normalized:  b.provider.Normalized(),
		Recompute:   b.params.Recompute,
		Compact:     b.params.Compact,
		Files: manifest.Files{
			Passages:   b.name + ".passages.jsonl",
			Offsets:    b.name + ".passages.idx",
			Graph:      graphFile,
			Embeddings: embeddingsFile,
			BM25:       b.name + ".bm25",
		},
		Tokenizer:              "leann-v1",
		QueryPromptTemplate:    b.params.QueryPromptTemplate,
		DocumentPromptTemplate: b.params.DocumentPromptTemplate,
	}

	if b.params.Backend == manifest.BackendVamana {
		meta.Vamana = &manifest.VamanaParams{
			R: b.params.Vamana.R, LBuild: b.params.Vamana.LBuild,
			Alpha: b.params.Vamana.Alpha, EntryPoint: entryPoint,
		}
	} else {
		meta.HNSW = &manifest.HNSWParams{
			M: b.params.HNSW.M, EFConstruction: b.params.HNSW.EFConstruction,
			EFSearchDefault: b.params.HNSW.EFSearchDefault,
			EntryPoint:      entryPoint, NumLayers: numLayers,
		}
	}

	fpParams := map[string]string{
		"backend": string(b.params.Backend),
		"metric":  string(b.params.Metric),
	}
	if b.params.Backend == manifest.BackendVamana {
		fpParams["R"] = strconv.Itoa(b.params.Vamana.R)
		fpParams["L_build"] = strconv.Itoa(b.params.Vamana.LBuild)
		fpParams["alpha"] = strconv.FormatFloat(b.params.Vamana.Alpha, 'f', -1, 64)
	} else {
		fpParams["M"] = strconv.Itoa(b.params.HNSW.M)
		fpParams["ef_construction"] = strconv.Itoa(b.params.HNSW.EFConstruction)
	}
	meta.BuildFingerprint = manifest.Fingerprint(meta.ModelID, meta.Dimension, n, fpParams, ids)

	return meta
}

