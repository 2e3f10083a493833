package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asaidimu/go-criteria/core/persistence"
	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/asaidimu/go-criteria/sqlite"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	registry, err := schema.NewRegistry(
		&schema.ModelDefinition{
			Name: "users",
			Fields: map[string]*schema.FieldDefinition{
				"id":      {Type: schema.FieldTypeInteger},
				"name":    {Type: schema.FieldTypeString, Required: true},
				"role_id": {Type: schema.FieldTypeInteger},
			},
			Searchable: schema.SearchableFields{
				{Name: "name", Operator: "like"},
				{Name: "roles.name"},
			},
			Relations: map[string]*schema.RelationDefinition{
				"roles": {Type: schema.RelationBelongsTo, Table: "roles", LocalKey: "role_id", ForeignKey: "id"},
			},
		},
		&schema.ModelDefinition{
			Name: "roles",
			Fields: map[string]*schema.FieldDefinition{
				"id":   {Type: schema.FieldTypeInteger},
				"name": {Type: schema.FieldTypeString},
			},
		},
	)
	require.NoError(t, err)

	interactor, err := sqlite.NewSQLiteInteractor(db, registry, nil, nil, nil)
	require.NoError(t, err)
	p, err := persistence.NewPersistence(interactor, registry)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, p.Migrate(ctx))

	roles, _ := p.Repository("roles")
	_, err = roles.Create(ctx, schema.Document{"id": 1, "name": "admin"}, schema.Document{"id": 2, "name": "guest"})
	require.NoError(t, err)
	users, _ := p.Repository("users")
	_, err = users.Create(ctx,
		schema.Document{"id": 1, "name": "john", "role_id": 1},
		schema.Document{"id": 2, "name": "jane", "role_id": 2},
	)
	require.NoError(t, err)

	return NewServer(p, nil)
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		Data  []map[string]any `json:"data"`
		Count int              `json:"count"`
	} `json:"data"`
	Error *APIError `json:"error"`
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestServer_Find(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		target string
		status int
		names  []string
		code   string
	}{
		{
			name:   "search by default value",
			target: "/api/users?search=jo",
			status: http.StatusOK,
			names:  []string{"john"},
		},
		{
			name:   "search through a relation",
			target: "/api/users?search=roles.name:guest",
			status: http.StatusOK,
			names:  []string{"jane"},
		},
		{
			name:   "ordering",
			target: "/api/users?orderBy=name&sortedBy=asc",
			status: http.StatusOK,
			names:  []string{"jane", "john"},
		},
		{
			name:   "invalid direction",
			target: "/api/users?orderBy=name&sortedBy=up",
			status: http.StatusBadRequest,
			code:   "INVALID_CRITERIA",
		},
		{
			name:   "no accepted fields",
			target: "/api/users?search=x&searchFields=password",
			status: http.StatusBadRequest,
			code:   "INVALID_CRITERIA",
		},
		{
			name:   "unknown relation in with",
			target: "/api/users?with=ghosts",
			status: http.StatusBadRequest,
			code:   "INVALID_CRITERIA",
		},
		{
			name:   "unknown relation in withCount",
			target: "/api/users?withCount=ghosts",
			status: http.StatusBadRequest,
			code:   "INVALID_CRITERIA",
		},
		{
			name:   "unknown model",
			target: "/api/ghosts",
			status: http.StatusNotFound,
			code:   "MODEL_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
			if tt.code != "" {
				assert.False(t, env.Success)
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			assert.True(t, env.Success)
			got := make([]string, len(env.Data.Data))
			for i, row := range env.Data.Data {
				got[i], _ = row["name"].(string)
			}
			assert.Equal(t, tt.names, got)
			assert.Equal(t, len(tt.names), env.Data.Count)
		})
	}
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestServer_Create(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/users", `{"documents":[{"id":3,"name":"bob","role_id":2}]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	require.Len(t, env.Data.Data, 1)
	assert.Equal(t, "bob", env.Data.Data[0]["name"])

	rec, env = do(t, s, http.MethodPost, "/api/users", `{"documents":[{"id":4}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, "/api/users", `{"docs":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_JSON", env.Error.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/ghosts", `{"documents":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Collections(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Collections []string `json:"collections"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"roles", "users"}, body.Data.Collections)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/users", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
