package openapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sessionDoc struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	Secret    string     `json:"-"`
}

type listDoc struct {
	Sessions []sessionDoc `json:"sessions"`
	Count    int          `json:"count"`
}

func TestDocument(t *testing.T) {
	doc := New("Condo Access", "1.0.0").BearerAuth("bearerAuth", "access token")

	doc.Document(http.MethodDelete, "/api/auth/sessions/:id").
		Summary("Revoke session").
		Tags("sessions").
		Security("bearerAuth").
		Response(http.StatusOK, listDoc{}, "ok").
		Build()

	spec := doc.Spec()
	item := spec.Paths.Find("/api/auth/sessions/{id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Delete)
	assert.Equal(t, "Revoke session", item.Delete.Summary)

	require.Len(t, item.Delete.Parameters, 1)
	assert.Equal(t, "id", item.Delete.Parameters[0].Value.Name)
	assert.Equal(t, "path", item.Delete.Parameters[0].Value.In)
	assert.True(t, item.Delete.Parameters[0].Value.Required)

	require.Contains(t, spec.Components.Schemas, "sessionDoc")
	session := spec.Components.Schemas["sessionDoc"].Value
	assert.Contains(t, session.Properties, "createdAt")
	assert.NotContains(t, session.Properties, "Secret")
	assert.Equal(t, "date-time", session.Properties["createdAt"].Value.Format)
	assert.ElementsMatch(t, []string{"id", "createdAt"}, session.Required)

	list := spec.Components.Schemas["listDoc"].Value
	assert.Equal(t, "#/components/schemas/sessionDoc", list.Properties["sessions"].Value.Items.Ref)

	require.NoError(t, spec.Validate(t.Context()))
}

func TestQueryParams(t *testing.T) {
	doc := New("t", "1")
	doc.Document(http.MethodGet, "/api/admin/audit").
		QueryParam("page", "page number").Type("integer").Default(1).
		QueryParam("sortOrder", "").Enum("asc", "desc").
		Done().
		Response(http.StatusOK, nil, "ok").
		Build()

	op := doc.Spec().Paths.Find("/api/admin/audit").Get
	require.Len(t, op.Parameters, 2)
	assert.Equal(t, 1, op.Parameters[0].Value.Schema.Value.Default)
	assert.Equal(t, []any{"asc", "desc"}, op.Parameters[1].Value.Schema.Value.Enum)
}

func TestHandlers(t *testing.T) {
	doc := New("Condo Access", "1.0.0")
	doc.Document(http.MethodGet, "/healthz").Response(http.StatusOK, nil, "ok").Build()

	e := echo.New()
	e.GET("/openapi.json", doc.JSONHandler())
	e.GET("/openapi.yaml", doc.YAMLHandler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/healthz"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get(echo.HeaderContentType))

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, "3.0.3", parsed["openapi"])
}
