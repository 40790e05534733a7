package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zorli-ai/docvault/internal/api"
)

type contextKey string

const WorkspaceIDKey contextKey = "workspace_id"

// Workspace requires the X-Workspace-ID header and puts its value on the
// request context. Every document and search route is scoped to it.
func Workspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := strings.TrimSpace(r.Header.Get("X-Workspace-ID"))
		if workspaceID == "" {
			api.Error(w, http.StatusBadRequest, "missing workspace header")
			return
		}

		ctx := context.WithValue(r.Context(), WorkspaceIDKey, workspaceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWorkspaceID returns the workspace ID from context.
func GetWorkspaceID(ctx context.Context) string {
	workspaceID, _ := ctx.Value(WorkspaceIDKey).(string)
	return workspaceID
}
