package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
	_ "modernc.org/sqlite"

	"lyra/internal/logging"
)

// ExemplarStore keeps previously published documents as style exemplars for
// synthesis prompts. Exemplars are ranked by embedding similarity when an
// embedding engine is available, by recency otherwise. Every failure path
// degrades to "no exemplars"; synthesis never depends on this store.
type ExemplarStore struct {
	db       *sql.DB
	mu       sync.RWMutex
	embedder Embedder
}

// Embedder turns text into a vector. Optional collaborator of the store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenExemplarStore opens (or creates) the exemplar database.
func OpenExemplarStore(path string, embedder Embedder) (*ExemplarStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	store := &ExemplarStore{db: db, embedder: embedder}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("exemplar store ready at %s", path)
	return store, nil
}

func (s *ExemplarStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS exemplars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			embedding TEXT,
			indexed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_exemplars_kind ON exemplars(doc_kind);
	`)
	return err
}

// Close releases the database handle.
func (s *ExemplarStore) Close() error {
	return s.db.Close()
}

// Add stores one exemplar document, embedding it when an engine is configured.
func (s *ExemplarStore) Add(ctx context.Context, docKind, title, body string) error {
	var embJSON sql.NullString
	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, body); err == nil {
			if raw, err := json.Marshal(vec); err == nil {
				embJSON = sql.NullString{String: string(raw), Valid: true}
			}
		} else {
			logging.StoreDebug("embedding failed for %q, stored without vector: %v", title, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exemplars (doc_kind, title, body, embedding, indexed_at) VALUES (?, ?, ?, ?, ?)`,
		docKind, title, body, embJSON, time.Now().Unix())
	return err
}

// IndexDocs walks a directory of markdown files and ingests each as an
// exemplar. The document kind is taken from the immediate parent directory
// name; top-level files fall back to the given default kind.
func (s *ExemplarStore) IndexDocs(ctx context.Context, dir, defaultKind string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			logging.StoreDebug("skipping unreadable exemplar %s: %v", path, err)
			return nil
		}

		kind := filepath.Base(filepath.Dir(path))
		if kind == filepath.Base(dir) {
			kind = defaultKind
		}
		title := titleFromMarkdown(string(raw), strings.TrimSuffix(d.Name(), ".md"))

		if err := s.Add(ctx, kind, title, string(raw)); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	logging.Store("indexed %d exemplar documents from %s", count, dir)
	return count, nil
}

// Count returns the number of stored exemplars.
func (s *ExemplarStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exemplars`).Scan(&n)
	return n, err
}

// Query returns up to n exemplar texts for the given document kind.
// With an embedding engine the candidates are ranked by cosine similarity to
// the query text; otherwise (or on any failure) most recent first.
func (s *ExemplarStore) Query(ctx context.Context, docKind, queryText string, n int) []string {
	if s == nil || n <= 0 {
		return nil
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT body, embedding FROM exemplars WHERE doc_kind = ? ORDER BY indexed_at DESC LIMIT 50`,
		docKind)
	s.mu.RUnlock()
	if err != nil {
		logging.StoreDebug("exemplar query failed, returning none: %v", err)
		return nil
	}
	defer rows.Close()

	type candidate struct {
		body string
		vec  []float32
	}
	var candidates []candidate
	for rows.Next() {
		var body string
		var embJSON sql.NullString
		if err := rows.Scan(&body, &embJSON); err != nil {
			continue
		}
		c := candidate{body: body}
		if embJSON.Valid {
			_ = json.Unmarshal([]byte(embJSON.String), &c.vec)
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}

	if s.embedder != nil && queryText != "" {
		if qv, err := s.embedder.Embed(ctx, queryText); err == nil {
			// Stable sort keeps recency order among vectorless candidates.
			sort.SliceStable(candidates, func(i, j int) bool {
				return cosineSimilarity(candidates[i].vec, qv) > cosineSimilarity(candidates[j].vec, qv)
			})
		} else {
			logging.StoreDebug("query embedding failed, falling back to recency: %v", err)
		}
	}

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.body
	}
	return out
}

func titleFromMarkdown(body, fallback string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return fallback
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GenAIEmbedder generates embeddings through the Gemini API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates an embedding engine for the exemplar store.
func NewGenAIEmbedder(apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Embeddings[0].Values, nil
}
