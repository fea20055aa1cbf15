package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetCertificate(ctx context.Context, id int64) (*Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Student), args.Error(1)
}

func (m *MockService) ListApproved(ctx context.Context, phone string) ([]Student, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).([]Student), args.Error(1)
}

func (m *MockService) ListPending(ctx context.Context) ([]Student, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Student), args.Error(1)
}

func (m *MockService) Render(ctx context.Context, id int64) (*Artifact, error) {
	args := m.Called(ctx, id)
	return artifactArg(args)
}

func (m *MockService) RenderPayload(ctx context.Context, payload any) (*Artifact, error) {
	args := m.Called(ctx, payload)
	return artifactArg(args)
}

func (m *MockService) Download(ctx context.Context, id int64, actor string) (*Artifact, error) {
	args := m.Called(ctx, id, actor)
	return artifactArg(args)
}

func (m *MockService) Preview(ctx context.Context, id int64, actor string) (*Artifact, error) {
	args := m.Called(ctx, id, actor)
	return artifactArg(args)
}

func (m *MockService) Inspect(ctx context.Context, id int64) (*diagnostics.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*diagnostics.Report), args.Error(1)
}

func (m *MockService) InspectPayload(ctx context.Context, payload any) *diagnostics.Report {
	args := m.Called(ctx, payload)
	return args.Get(0).(*diagnostics.Report)
}

func (m *MockService) Request(ctx context.Context, id int64, req CertificateRequest) (*Student, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Student), args.Error(1)
}

func (m *MockService) Review(ctx context.Context, id int64, req ReviewRequest) (*ReviewResult, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReviewResult), args.Error(1)
}

func (m *MockService) ArchivedCopy(ctx context.Context, id int64) (*Artifact, error) {
	args := m.Called(ctx, id)
	return artifactArg(args)
}

func (m *MockService) AccessLogs(ctx context.Context, id int64, limit int) ([]AccessLog, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AccessLog), args.Error(1)
}

func (m *MockService) Archive(ctx context.Context, id int64) (*ArchiveResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ArchiveResult), args.Error(1)
}

func artifactArg(args mock.Arguments) (*Artifact, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Artifact), args.Error(1)
}

func setupRouter(service Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(service, nil).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func perform(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func pdfArtifact(verified bool) *Artifact {
	return &Artifact{
		StudentID:   7,
		Data:        []byte(storedPDF),
		Filename:    "Asha_Rani_Kumar_Certificate_CERT-2024-007.pdf",
		ContentType: "application/pdf",
		Source:      SourceStoredPDF,
		Format:      bytea.FormatHex,
		Verified:    verified,
	}
}

func TestHandler_Download(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("Download", mock.Anything, int64(7), "student-7").Return(pdfArtifact(true), nil)

	w := perform(router, http.MethodGet, "/api/v1/certificates/7/download", "", map[string]string{"X-User-ID": "student-7"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=Asha_Rani_Kumar_Certificate_CERT-2024-007.pdf`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "hex", w.Header().Get("X-Certificate-Format"))
	assert.Equal(t, "true", w.Header().Get("X-Certificate-Valid"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, storedPDF, w.Body.String())

	svc.AssertExpectations(t)
}

func TestHandler_Preview(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	artifact := pdfArtifact(false)
	artifact.Filename = PreviewFilename
	svc.On("Preview", mock.Anything, int64(7), "").Return(artifact, nil)

	w := perform(router, http.MethodGet, "/api/v1/certificates/7/preview", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inline; filename=certificate_preview.pdf", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "false", w.Header().Get("X-Certificate-Valid"))

	w = perform(router, http.MethodGet, "/api/v1/certificates/7/preview?fallback=download", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=certificate_preview.pdf", w.Header().Get("Content-Disposition"))
}

func TestHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrCertificateNotFound, http.StatusNotFound},
		{"not approved", ErrNotApproved, http.StatusConflict},
		{"no certificate", ErrNoCertificate, http.StatusUnprocessableEntity},
		{"unverified", ErrUnverifiedPayload, http.StatusUnprocessableEntity},
		{"bad hex", bytea.ErrInvalidHexCharacter, http.StatusUnprocessableEntity},
		{"request limit", ErrRequestLimitReached, http.StatusConflict},
		{"no certificate id", ErrMissingCertificateID, http.StatusBadRequest},
		{"no archive", ErrNoArchive, http.StatusNotFound},
		{"logs disabled", ErrAccessLogsDisabled, http.StatusServiceUnavailable},
		{"database", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			router := setupRouter(svc)
			svc.On("Download", mock.Anything, int64(3), "").Return(nil, tt.err)

			w := perform(router, http.MethodGet, "/api/v1/certificates/3/download", "", nil)

			assert.Equal(t, tt.want, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestHandler_InvalidID(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	for _, path := range []string{"/api/v1/certificates/abc/download", "/api/v1/certificates/0", "/api/v1/certificates/-4/inspect"} {
		w := perform(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	svc.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_ListApproved(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	w := perform(router, http.MethodGet, "/api/v1/certificates", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("ListApproved", mock.Anything, "9000000000").Return([]Student{{ID: 7, Name: "Asha"}}, nil)
	w = perform(router, http.MethodGet, "/api/v1/certificates?phone=9000000000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var students []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &students))
	require.Len(t, students, 1)
	assert.Equal(t, "Asha", students[0]["name"])
	assert.NotContains(t, students[0], "certificate")
}

func TestHandler_ListPendingRoute(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("ListPending", mock.Anything).Return([]Student{}, nil)
	w := perform(router, http.MethodGet, "/api/v1/certificates/pending", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_Review(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	approved := workflows.StatusApproved
	svc.On("Review", mock.Anything, int64(7), ReviewRequest{Action: ReviewApprove, Reviewer: "admin"}).
		Return(&ReviewResult{
			Student: &Student{ID: 7, CertificateStatus: &approved, CertificateApproved: true},
			Warning: "certificate approved, but no email address found for student",
		}, nil)

	w := perform(router, http.MethodPut, "/api/v1/certificates/7/review", `{"action":"approve"}`, map[string]string{"X-User-ID": "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["notified"])
	assert.Contains(t, got["warning"], "no email address")
	assert.Contains(t, got, "student")

	w = perform(router, http.MethodPut, "/api/v1/certificates/7/review", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Review", mock.Anything, int64(8), mock.Anything).
		Return(nil, &workflows.TransitionError{From: workflows.StatusNone, To: workflows.StatusApproved})
	w = perform(router, http.MethodPut, "/api/v1/certificates/8/review", `{"action":"approve"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_Archive(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("Archive", mock.Anything, int64(7)).Return(&ArchiveResult{StudentID: 7, Bucket: "certs", Key: "students/7/x.pdf"}, nil)
	w := perform(router, http.MethodPost, "/api/v1/certificates/7/archive", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	svc.On("Archive", mock.Anything, int64(9)).Return(nil, ErrStorageDisabled)
	w = perform(router, http.MethodPost, "/api/v1/certificates/9/archive", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_DecodePayload(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	report := &diagnostics.Report{Label: "request body", Format: bytea.FormatHex, HeaderValid: true}
	svc.On("InspectPayload", mock.Anything, `\x25504446`).Return(report)

	w := perform(router, http.MethodPost, "/api/v1/certificates/decode", `{"payload":"\\x25504446"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hex", got["format"])
	assert.Equal(t, true, got["header_valid"])
}

func TestHandler_Request(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	pending := workflows.StatusPending
	req := CertificateRequest{Certificate: "data:image/png;base64,AAAA", CertificateID: "CERT-1"}
	svc.On("Request", mock.Anything, int64(7), req).
		Return(&Student{ID: 7, CertificateStatus: &pending, DownloadedCount: 1}, nil)

	w := perform(router, http.MethodPost, "/api/v1/certificates/7/request",
		`{"certificate":"data:image/png;base64,AAAA","certificate_id":"CERT-1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "pending", got["certificate_status"])
	assert.Equal(t, float64(1), got["downloaded_count"])

	w = perform(router, http.MethodPost, "/api/v1/certificates/7/request", `{"certificate_id":"CERT-1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Request", mock.Anything, int64(8), mock.Anything).Return(nil, ErrRequestLimitReached)
	w = perform(router, http.MethodPost, "/api/v1/certificates/8/request", `{"certificate":"x"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	svc.AssertExpectations(t)
}

func TestHandler_ArchivedCopy(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	artifact := pdfArtifact(true)
	artifact.Source = SourceArchive
	svc.On("ArchivedCopy", mock.Anything, int64(7)).Return(artifact, nil)

	w := perform(router, http.MethodGet, "/api/v1/certificates/7/archive", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "archive", w.Header().Get("X-Certificate-Source"))
	assert.Equal(t, `attachment; filename=Asha_Rani_Kumar_Certificate_CERT-2024-007.pdf`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, storedPDF, w.Body.String())

	svc.On("ArchivedCopy", mock.Anything, int64(9)).Return(nil, ErrNoArchive)
	w = perform(router, http.MethodGet, "/api/v1/certificates/9/archive", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_AccessLogs(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	svc.On("AccessLogs", mock.Anything, int64(7), 5).
		Return([]AccessLog{{StudentID: 7, Action: ActionDownload, Success: true}}, nil)
	svc.On("AccessLogs", mock.Anything, int64(7), 0).Return([]AccessLog{}, nil)

	w := perform(router, http.MethodGet, "/api/v1/certificates/7/access-logs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	w = perform(router, http.MethodGet, "/api/v1/certificates/7/access-logs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/api/v1/certificates/7/access-logs?limit=ten", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}
