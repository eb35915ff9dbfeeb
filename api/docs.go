package api

import (
	"net/http"

	"github.com/tech-arch1tect/condoaccess/openapi"
	"github.com/tech-arch1tect/condoaccess/server"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
)

const (
	bearerScheme = "bearerAuth"
	docVersion   = "1.0.0"
)

// NewDocs describes every route registered by Routes.
func NewDocs(appName, baseURL string) *openapi.OpenAPI {
	doc := openapi.New(appName+" API", docVersion).
		Description("Resident sessions, audit log and login security telemetry.").
		Server(baseURL, "").
		Tag("auth", "Login and refresh session management").
		Tag("audit", "Authentication audit log").
		Tag("metrics", "Login security metrics, snapshots and retention").
		BearerAuth(bearerScheme, "Access token returned by login or refresh")

	errBody := server.ErrorResponse{}

	doc.Document(http.MethodPost, Prefix+"/auth/login").
		Summary("Log in").
		Description("Accepts email, userEmail, username or login for the email and password, pass or senha for the password.").
		OperationID("login").
		Tags("auth").
		NoSecurity().
		Body(LoginRequest{}, "Credentials").
		Response(http.StatusOK, refreshsession.Tokens{}, "Session issued").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodPost, Prefix+"/auth/refresh").
		Summary("Rotate a refresh token").
		OperationID("refresh").
		Tags("auth").
		NoSecurity().
		Body(RefreshRequest{}, "Refresh token to rotate").
		Response(http.StatusOK, refreshsession.Tokens{}, "New token pair").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodPost, Prefix+"/auth/logout").
		Summary("Revoke the session behind a refresh token").
		OperationID("logout").
		Tags("auth").
		NoSecurity().
		Body(RefreshRequest{}, "Refresh token to revoke").
		Response(http.StatusOK, OutcomeResponse{}, "Revocation outcome").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodPost, Prefix+"/auth/logout-all").
		Summary("Revoke every active session of the caller").
		OperationID("logoutAll").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, RevokeAllResponse{}, "Number of sessions revoked").
		Errors(errBody, http.StatusUnauthorized, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodGet, Prefix+"/auth/sessions").
		Summary("List active sessions of the caller").
		OperationID("listSessions").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, SessionsResponse{}, "Active sessions, newest first").
		Errors(errBody, http.StatusUnauthorized, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodDelete, Prefix+"/auth/sessions/:id").
		Summary("Revoke one of the caller's sessions").
		OperationID("revokeSession").
		Tags("auth").
		Security(bearerScheme).
		PathParam("id", "Session id").Format("uuid").Done().
		Response(http.StatusOK, OutcomeResponse{}, "Revocation outcome").
		Errors(errBody, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError).
		Build()

	auditFilters := func(rb *openapi.RouteBuilder) *openapi.RouteBuilder {
		return rb.
			QueryParam("userEmail", "Case-insensitive substring of the user email").
			QueryParam("eventType", "Exact event type").
			QueryParam("success", "Filter by outcome").Type("boolean").
			QueryParam("ipAddress", "Substring of the client address").
			QueryParam("sessionId", "Substring of the session id").
			QueryParam("startTime", "Inclusive lower bound, RFC 3339 or YYYY-MM-DD").Format("date-time").
			QueryParam("endTime", "Inclusive upper bound, RFC 3339 or YYYY-MM-DD").Format("date-time").
			QueryParam("sortBy", "Sort column").Enum(audit.SortableColumns...).Default("createdAt").
			QueryParam("sortOrder", "Sort direction").Enum("asc", "desc").Default("desc").
			Done()
	}

	auditFilters(doc.Document(http.MethodGet, Prefix+"/admin/audit")).
		Summary("Query the audit log").
		OperationID("queryAudit").
		Tags("audit").
		Security(bearerScheme).
		QueryParam("page", "Page number").Type("integer").Default(1).
		QueryParam("limit", "Page size, at most 500").Type("integer").Default(audit.DefaultPageSize).
		Done().
		Response(http.StatusOK, audit.QueryResult{}, "One page of events").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	auditFilters(doc.Document(http.MethodGet, Prefix+"/admin/audit/export/meta")).
		Summary("Describe an audit export").
		OperationID("exportAuditMeta").
		Tags("audit").
		Security(bearerScheme).
		QueryParam("limit", "Requested row count").Type("integer").
		Done().
		Response(http.StatusOK, audit.ExportMeta{}, "Export size and truncation").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	auditFilters(doc.Document(http.MethodGet, Prefix+"/admin/audit/export")).
		Summary("Export the audit log as CSV").
		OperationID("exportAudit").
		Tags("audit").
		Security(bearerScheme).
		QueryParam("limit", "Requested row count").Type("integer").
		Done().
		ResponseFile(http.StatusOK, "text/csv", "CSV with a fixed header row", map[string]string{
			HeaderExportCount:          "Rows matching the filter",
			HeaderExportRequestedLimit: "Requested row count",
			HeaderExportMaxLimit:       "Server export cap",
			HeaderExportEffectiveLimit: "Rows written at most",
			HeaderExportTruncated:      "Whether rows were left out",
		}).
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodGet, Prefix+"/admin/metrics").
		Summary("Compute login security metrics").
		OperationID("securityMetrics").
		Tags("metrics").
		Security(bearerScheme).
		QueryParam("windowHours", "Window length in hours, at most 336").Type("number").
		QueryParam("topN", "Ranking size, at most 100").Type("integer").
		Done().
		Response(http.StatusOK, securitymetrics.Result{}, "Metrics for the window").
		Errors(errBody, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodGet, Prefix+"/admin/metrics/history").
		Summary("List stored metric snapshots").
		OperationID("securityMetricsHistory").
		Tags("metrics").
		Security(bearerScheme).
		QueryParam("windowHours", "Exact window length").Type("number").
		QueryParam("startTime", "Inclusive lower bound on generatedAt").Format("date-time").
		QueryParam("endTime", "Inclusive upper bound on generatedAt").Format("date-time").
		QueryParam("limit", "Most recent snapshots to return, at most 1000").Type("integer").Default(securitymetrics.DefaultHistoryLimit).
		Done().
		Response(http.StatusOK, HistoryResponse{}, "Snapshots, oldest first").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodPost, Prefix+"/admin/metrics/snapshots").
		Summary("Compute and store a metric snapshot").
		OperationID("createSnapshot").
		Tags("metrics").
		Security(bearerScheme).
		QueryParam("windowHours", "Window length in hours").Type("number").
		QueryParam("topN", "Ranking size").Type("integer").
		Done().
		Response(http.StatusCreated, securitymetrics.Snapshot{}, "Stored snapshot").
		Errors(errBody, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	doc.Document(http.MethodPost, Prefix+"/admin/retention/prune").
		Summary("Apply retention to audit events and snapshots").
		OperationID("prune").
		Tags("metrics").
		Security(bearerScheme).
		QueryParam("target", "Tables to prune").Enum("all", "audit", "snapshots").Default("all").
		QueryParam("auditRetentionDays", "Audit retention in days, configured default when absent").Type("number").
		QueryParam("snapshotRetentionDays", "Snapshot retention in days, configured default when absent").Type("number").
		Done().
		Response(http.StatusOK, PruneResponse{}, "Rows deleted per table").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError).
		Build()

	return doc
}
