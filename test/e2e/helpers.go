//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zorli-ai/docvault/internal/api/handlers"
	"github.com/zorli-ai/docvault/internal/extract"
	"github.com/zorli-ai/docvault/internal/index"
	"github.com/zorli-ai/docvault/internal/jobs"
	"github.com/zorli-ai/docvault/internal/repository"
	"github.com/zorli-ai/docvault/internal/server"
	"github.com/zorli-ai/docvault/internal/service"
	"github.com/zorli-ai/docvault/internal/storage"
	"github.com/zorli-ai/docvault/internal/testutil"
)

// embedDims keeps test vectors small; the index only requires that
// query and chunk vectors agree on width.
const embedDims = 16

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	// Start PostgreSQL container
	pgC := testutil.NewPostgresContainer(ctx, t)

	// Start RustFS container
	s3C := testutil.NewRustFSContainer(ctx, t)

	// Create connection pool and run migrations
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	// Create S3 client
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	// Find free port for server
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	// Start HTTP server
	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// DocumentInfo mirrors the document fields the API returns.
type DocumentInfo struct {
	ID            string `json:"id"`
	WorkspaceID   string `json:"workspace_id"`
	Filename      string `json:"filename"`
	MediaType     string `json:"media_type"`
	SizeBytes     int64  `json:"size_bytes"`
	Status        string `json:"status"`
	Stage         string `json:"stage"`
	FailReason    string `json:"fail_reason"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	ExtractMethod string `json:"extract_method"`
}

// Get performs a GET request scoped to the workspace
func (e *E2ETestEnv) Get(path, workspaceID string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, workspaceID)
}

// Post performs a POST request scoped to the workspace
func (e *E2ETestEnv) Post(path string, body interface{}, workspaceID string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, workspaceID)
}

// Delete performs a DELETE request scoped to the workspace
func (e *E2ETestEnv) Delete(path, workspaceID string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, workspaceID)
}

// UploadDocument posts a multipart document upload. The part carries its
// own Content-Type header, which is what the server records as the
// document media type.
func (e *E2ETestEnv) UploadDocument(workspaceID, filename, contentType string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/v1/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Workspace-ID", workspaceID)

	return e.parseResponse(e.HTTPClient.Do(req))
}

// WaitForDocument polls the detail endpoint until the document reaches a
// terminal status or the timeout expires.
func (e *E2ETestEnv) WaitForDocument(workspaceID, documentID string, timeout time.Duration) *DocumentInfo {
	e.T.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/v1/documents/"+documentID, workspaceID)
		if err != nil {
			e.T.Fatalf("failed to poll document %s: %v", documentID, err)
		}

		var doc DocumentInfo
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			e.T.Fatalf("failed to parse document response: %v", err)
		}
		if doc.Status == "completed" || doc.Status == "failed" {
			return &doc
		}

		time.Sleep(100 * time.Millisecond)
	}

	e.T.Fatalf("document %s did not reach a terminal status within %v", documentID, timeout)
	return nil
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, workspaceID string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if workspaceID != "" {
		req.Header.Set("X-Workspace-ID", workspaceID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return e.parseResponse(e.HTTPClient.Do(req))
}

func (e *E2ETestEnv) parseResponse(resp *http.Response, err error) (*APIResponse, error) {
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Delete returns 204 with no body
	if len(respBody) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires the full pipeline and starts the HTTP server. The
// extractor runs without a PDF renderer or OCR engine, so E2E documents
// stick to text-family formats.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	ctx := context.Background()

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	searchIndex := index.New(index.Config{Dimensions: embedDims})
	embedder := service.NewEmbeddingService(&hashEmbedder{dims: embedDims}, 100, 0)
	extractor := extract.NewExtractor(nil, nil, extract.Options{})

	var ingestionSvc *service.IngestionService
	dispatcher, err := jobs.NewDispatcher(
		jobs.ProcessorFunc(func(ctx context.Context, documentID string) error {
			return ingestionSvc.Process(ctx, documentID)
		}),
		documentRepo,
		jobs.DispatcherConfig{
			WorkerCount:    2,
			QueueCapacity:  64,
			ProcessTimeout: 30 * time.Second,
		},
	)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	// Small windows so short fixtures still produce several chunks.
	ingestionSvc = service.NewIngestionService(documentRepo, chunkRepo, s3Client,
		extractor, embedder, searchIndex, dispatcher,
		service.IngestionConfig{
			ChunkConfig: service.ChunkConfig{MaxWords: 40, OverlapWords: 10},
		})

	documentSvc := service.NewDocumentService(documentRepo, s3Client, dispatcher, 1<<20)
	retrievalSvc := service.NewRetrievalService(searchIndex, embedder, chunkRepo)

	if _, err := dispatcher.RequeuePending(ctx); err != nil {
		t.Fatalf("failed to requeue pending documents: %v", err)
	}
	go dispatcher.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documentSvc, ingestionSvc),
		SearchHandler:   handlers.NewSearchHandler(retrievalSvc),
		HealthHandler:   handlers.NewHealthHandler(pool, embedder, searchIndex, documentRepo),
		MaxBodyBytes:    2 << 20,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		dispatcher.Stop()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder is a deterministic embedding provider for tests: each
// vector is a normalized bag-of-words histogram, so texts that share
// vocabulary land close together in cosine space without a network call.
type hashEmbedder struct {
	dims int
}

func (h *hashEmbedder) IsAvailable() bool { return true }

func (h *hashEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error) {
	vectors := make([][]float32, len(texts))
	tokens := 0
	for i, text := range texts {
		vec := make([]float32, h.dims)
		words := strings.Fields(strings.ToLower(text))
		tokens += len(words)
		for _, w := range words {
			hasher := fnv.New32a()
			hasher.Write([]byte(w))
			vec[int(hasher.Sum32())%h.dims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		vectors[i] = vec
	}
	return vectors, tokens, nil
}
