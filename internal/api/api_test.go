package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aida/internal/blob"
	"aida/internal/config"
	internaldb "aida/internal/db"
	"aida/internal/db/repository"
	"aida/internal/domain"
	"aida/internal/middleware"
	"aida/internal/service/auditutil"
	"aida/internal/service/datasource"
	"aida/internal/service/ingestion"
	"aida/internal/service/project"
	"aida/internal/service/security"
	"aida/internal/testutil"
)

const testSecret = "api-test-secret"

type testAPI struct {
	router   http.Handler
	uploads  string
	projects *repository.ProjectRepo
	sources  *repository.DataSourceRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	pools := internaldb.OpenTestPools(t)
	logger := testutil.DiscardLogger()
	uploads := t.TempDir()
	store, err := blob.NewLocalStore(uploads)
	require.NoError(t, err)

	projects := repository.NewProjectRepo(pools.Write)
	sources := repository.NewDataSourceRepo(pools.Write)
	entries := repository.NewDataEntryRepo(pools.Write)
	recorder := auditutil.NewRecorder(repository.NewAuditRepo(pools.Write), logger)
	gate := security.NewOwnershipGate(projects, recorder)

	coord := ingestion.NewCoordinator(gate,
		ingestion.NewGateway(store, config.DefaultMaxUploadBytes, logger),
		store, sources, entries, recorder, config.OrphanRetain, logger)
	h := NewHandler(coord,
		datasource.NewService(gate, repository.NewDataSourceRepo(pools.Read), repository.NewDataEntryRepo(pools.Read)),
		project.NewService(projects, gate, recorder),
		HandlerConfig{MaxUploadBytes: config.DefaultMaxUploadBytes, ReadTimeout: time.Minute},
		logger)

	verifier, err := middleware.NewHS256Verifier(testSecret)
	require.NoError(t, err)
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	return &testAPI{
		router: NewRouter(h, RouterConfig{
			Authenticator: middleware.NewAuthenticator(verifier, logger),
			CORSOrigins:   []string{"*"},
			OpenAPI:       doc,
		}),
		uploads:  uploads,
		projects: projects,
		sources:  sources,
	}
}

func token(t *testing.T, principal string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": map[string]any{"id": principal},
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *testAPI) createProject(t *testing.T, owner string) *domain.Project {
	t.Helper()
	p, err := a.projects.Create(context.Background(), &domain.Project{Name: "sales", Owner: owner})
	require.NoError(t, err)
	return p
}

func (a *testAPI) do(t *testing.T, req *http.Request, principal string) *httptest.ResponseRecorder {
	t.Helper()
	if principal != "" {
		req.Header.Set("x-auth-token", token(t, principal))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(a.uploads)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type formPart struct {
	name, value string
}

type filePart struct {
	name, mediaType string
	content         []byte
}

// uploadRequest builds a multipart request with fields first, then the file.
func uploadRequest(t *testing.T, path string, fields []formPart, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.name))
		if file.mediaType != "" {
			h.Set("Content-Type", file.mediaType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUpload_CSVScenario(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")

	rec := a.do(t, uploadRequest(t, "/upload",
		[]formPart{{"fileType", "csv"}, {"projectId", p.ID}},
		&filePart{name: "people.csv", mediaType: "text/csv", content: []byte("name,age\nAda,36\nLin,41\n")},
	), "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[UploadResponse](t, rec)
	assert.Equal(t, "File uploaded and processed successfully", up.Msg)
	assert.Equal(t, int64(2), up.Entries)

	files := a.storedFiles(t)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "-people.csv"))

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources?projectId="+p.ID, nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[Page[DataSource]](t, rec)
	require.Len(t, list.Data, 1)
	ds := list.Data[0]
	assert.Equal(t, up.DataSourceID, ds.ID)
	assert.Equal(t, "people.csv", ds.Name)
	assert.Equal(t, "manual-upload", ds.Origin)
	require.NotNil(t, ds.StorageLocation)
	assert.Equal(t, files[0], *ds.StorageLocation)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources/"+ds.ID+"/entries", nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payload":{"name":"Ada","age":"36"}`)
	assert.Contains(t, rec.Body.String(), `"payload":{"name":"Lin","age":"41"}`)
}

func TestUpload_SQLScenario(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")

	rec := a.do(t, uploadRequest(t, "/api/upload",
		[]formPart{{"fileType", "sql"}, {"projectId", p.ID}},
		&filePart{name: "q.sql", mediaType: "application/sql", content: []byte("CREATE TABLE t(a int);\n\nINSERT INTO t VALUES (1);  ;")},
	), "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[UploadResponse](t, rec)
	assert.Equal(t, int64(2), up.Entries)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/api/data-sources/"+up.DataSourceID+"/entries", nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[Page[DataEntry]](t, rec)
	require.Len(t, page.Data, 2)
	q, _ := page.Data[0].Payload.Get(domain.QueryKey)
	assert.Equal(t, "CREATE TABLE t(a int)", q.String())
	q, _ = page.Data[1].Payload.Get(domain.QueryKey)
	assert.Equal(t, "INSERT INTO t VALUES (1)", q.String())
}

func TestUpload_ForeignProjectScenario(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")

	rec := a.do(t, uploadRequest(t, "/upload",
		[]formPart{{"fileType", "csv"}, {"projectId", p.ID}},
		&filePart{name: "a.csv", mediaType: "text/csv", content: []byte("h\n1\n")},
	), "bob")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[ErrorBody](t, rec)
	assert.Equal(t, domain.KindForbidden, body.Kind)
	assert.Empty(t, a.storedFiles(t))

	_, total, err := a.sources.ListByProject(context.Background(), "alice", p.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources?projectId="+p.ID, nil), "bob")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpload_SizeBoundary(t *testing.T) {
	// 10240 statements of exactly 1024 bytes each fill the ceiling.
	stmt := "SELECT '" + strings.Repeat("a", 1013) + "';\n"
	require.Len(t, stmt, 1024)
	exact := []byte(strings.Repeat(stmt, int(config.DefaultMaxUploadBytes)/len(stmt)))
	require.Len(t, exact, int(config.DefaultMaxUploadBytes))

	t.Run("exact_ceiling_succeeds", func(t *testing.T) {
		a := newTestAPI(t)
		p := a.createProject(t, "alice")
		rec := a.do(t, uploadRequest(t, "/upload",
			[]formPart{{"fileType", "sql"}, {"projectId", p.ID}},
			&filePart{name: "big.sql", mediaType: "text/plain", content: exact},
		), "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, int64(10240), decode[UploadResponse](t, rec).Entries)
	})

	t.Run("one_byte_over_is_rejected", func(t *testing.T) {
		a := newTestAPI(t)
		p := a.createProject(t, "alice")
		over := append(append([]byte{}, exact...), '\n')
		rec := a.do(t, uploadRequest(t, "/upload",
			[]formPart{{"fileType", "sql"}, {"projectId", p.ID}},
			&filePart{name: "big.sql", mediaType: "text/plain", content: over},
		), "alice")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, domain.KindPayloadTooLarge, decode[ErrorBody](t, rec).Kind)
		assert.Empty(t, a.storedFiles(t))

		_, total, err := a.sources.ListByProject(context.Background(), "alice", p.ID, domain.PageRequest{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestUpload_Rejections(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")
	csv := &filePart{name: "a.csv", mediaType: "text/csv", content: []byte("h\n1\n")}

	tests := []struct {
		name      string
		req       *http.Request
		principal string
		status    int
		kind      string
		params    []string
	}{
		{
			name:   "no_token",
			req:    uploadRequest(t, "/upload", []formPart{{"fileType", "csv"}, {"projectId", p.ID}}, csv),
			status: http.StatusUnauthorized,
			kind:   domain.KindUnauthenticated,
		},
		{
			name:      "missing_fields",
			req:       uploadRequest(t, "/upload", nil, csv),
			principal: "alice",
			status:    http.StatusBadRequest,
			kind:      domain.KindValidationFailed,
			params:    []string{"fileType", "projectId"},
		},
		{
			name:      "bad_file_type_field",
			req:       uploadRequest(t, "/upload", []formPart{{"fileType", "xlsx"}, {"projectId", p.ID}}, csv),
			principal: "alice",
			status:    http.StatusBadRequest,
			kind:      domain.KindValidationFailed,
			params:    []string{"fileType"},
		},
		{
			name:      "no_file",
			req:       uploadRequest(t, "/upload", []formPart{{"fileType", "csv"}, {"projectId", p.ID}}, nil),
			principal: "alice",
			status:    http.StatusBadRequest,
			kind:      domain.KindValidationFailed,
			params:    []string{"file"},
		},
		{
			name: "media_type_mismatch",
			req: uploadRequest(t, "/upload", []formPart{{"fileType", "sql"}, {"projectId", p.ID}},
				&filePart{name: "a.csv", mediaType: "text/csv", content: []byte("h\n1\n")}),
			principal: "alice",
			status:    http.StatusBadRequest,
			kind:      domain.KindValidationFailed,
			params:    []string{"file"},
		},
		{
			name:      "unknown_project",
			req:       uploadRequest(t, "/upload", []formPart{{"fileType", "csv"}, {"projectId", domain.NewID()}}, csv),
			principal: "alice",
			status:    http.StatusNotFound,
			kind:      domain.KindNotFound,
		},
		{
			name:      "not_multipart",
			req:       httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}")),
			principal: "alice",
			status:    http.StatusBadRequest,
			kind:      domain.KindValidationFailed,
			params:    []string{"file"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.req, tt.principal)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[ErrorBody](t, rec)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.kind, body.Kind)
			var params []string
			for _, f := range body.Errors {
				params = append(params, f.Param)
			}
			assert.Equal(t, tt.params, params)
		})
	}
	assert.Empty(t, a.storedFiles(t))
}

func TestUpload_MalformedCSVRetainsSource(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")

	rec := a.do(t, uploadRequest(t, "/upload",
		[]formPart{{"fileType", "csv"}, {"projectId", p.ID}},
		&filePart{name: "bad.csv", mediaType: "text/csv", content: []byte("a,b\n\"x,1\n")},
	), "alice")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.KindMalformedContent, decode[ErrorBody](t, rec).Kind)
	assert.Len(t, a.storedFiles(t), 1)

	_, total, err := a.sources.ListByProject(context.Background(), "alice", p.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProjects(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"name":"Sales","description":"q3"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := a.do(t, req, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[Project](t, rec)
	assert.Equal(t, "alice", created.Owner)
	assert.Nil(t, created.LastOpened)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[Project](t, rec).LastOpened)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil), "bob")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/projects", nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[Page[Project]](t, rec).Data, 1)

	rec = a.do(t, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"name":" "}`)), "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataSources_Listing(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "alice")

	rec := a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources", nil), "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 3; i++ {
		rec := a.do(t, uploadRequest(t, "/upload",
			[]formPart{{"fileType", "csv"}, {"projectId", p.ID}},
			&filePart{name: fmt.Sprintf("f%d.csv", i), mediaType: "text/csv", content: []byte("h\n1\n")},
		), "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources?projectId="+p.ID+"&max_results=2", nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[Page[DataSource]](t, rec)
	assert.Len(t, first.Data, 2)
	require.NotEmpty(t, first.NextPageToken)

	rec = a.do(t, httptest.NewRequest(http.MethodGet,
		"/data-sources?projectId="+p.ID+"&max_results=2&page_token="+first.NextPageToken, nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[Page[DataSource]](t, rec)
	assert.Len(t, second.Data, 1)
	assert.Empty(t, second.NextPageToken)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources/"+second.Data[0].ID, nil), "bob")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/data-sources?projectId="+p.ID+"&max_results=x", nil), "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, httptest.NewRequest(http.MethodGet, "/openapi.json", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/upload"`)
}
