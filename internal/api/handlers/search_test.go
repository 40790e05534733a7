package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zorli-ai/docvault/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SearchResult), args.Error(1)
}

func TestSearchHandler_Search_Success(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	results := []service.SearchResult{
		{
			DocumentID: "doc-1",
			ChunkID:    "chunk-1",
			ChunkIndex: 0,
			Filename:   "policy.pdf",
			Content:    "remote work is allowed twice a week",
			Similarity: 0.82,
			Score:      0.74,
		},
	}
	mockSvc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.WorkspaceID == "ws-456" &&
			input.Query == "remote work policy" &&
			input.Limit == 5 &&
			len(input.DocumentIDs) == 2
	})).Return(results, nil)

	body := `{"query":"remote work policy","limit":5,"file_ids":["doc-1","doc-2"]}`
	req := requestWithWorkspaceID(http.MethodPost, "/v1/search", []byte(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	items := data["results"].([]interface{})
	require.Len(t, items, 1)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "policy.pdf", first["filename"])
	assert.Equal(t, "remote work is allowed twice a week", first["content"])
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_Search_EmptyResults(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).Return([]service.SearchResult{}, nil)

	body := `{"query":"nothing matches this"}`
	req := requestWithWorkspaceID(http.MethodPost, "/v1/search", []byte(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_Search_MissingWorkspace(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing workspace header")
}

func TestSearchHandler_Search_MissingQuery(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	body := `{"limit":5}`
	req := requestWithWorkspaceID(http.MethodPost, "/v1/search", []byte(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query is required")
}

func TestSearchHandler_Search_InvalidBody(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	req := requestWithWorkspaceID(http.MethodPost, "/v1/search", []byte(`{broken`))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestSearchHandler_Search_ServiceError(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	body := `{"query":"remote work policy"}`
	req := requestWithWorkspaceID(http.MethodPost, "/v1/search", []byte(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockSvc.AssertExpectations(t)
}
