package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/credentials"
	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/model"
	"github.com/dharsanguruparan/LineReport/internal/report"
	"github.com/dharsanguruparan/LineReport/internal/signing"
	"github.com/dharsanguruparan/LineReport/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type records interface {
	report.Appender
	history.Lister
}

type brokenAppends struct{}

func (brokenAppends) Append(context.Context, model.Report) error {
	return errors.New("sheets quota exceeded")
}

func (brokenAppends) List(context.Context, int) ([]model.Report, error) { return nil, nil }

type brokenReads struct{ *storage.MemoryStore }

func (brokenReads) List(context.Context, int) ([]model.Report, error) {
	return nil, errors.New("sheet unavailable")
}

type harness struct {
	srv    *Server
	signer *signing.Signer
	photos *storage.MemoryPhotos
}

func newHarness(t *testing.T, recs records, creds credentials.Source) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Address:       ":0",
		MaxPhotoBytes: 1 << 20,
		AllowedTypes:  []string{"image/jpeg", "image/png"},
		HistoryLimit:  50,
	}
	photos := storage.NewMemoryPhotos("/photos/")
	signer := signing.NewSigner([]byte("test-secret"), time.Hour)
	svc := report.NewService(nil, recs, photos, []string{"MAQ-2", "MAQ-5"}, report.Options{
		Location:       time.UTC,
		CleanupOrphans: true,
	})
	srv, err := New(cfg, nil, Deps{
		Reports:     svc,
		History:     history.NewViewer(nil, recs, cfg.HistoryLimit),
		Signer:      signer,
		Credentials: creds,
		Photos:      photos,
	})
	require.NoError(t, err)
	return &harness{srv: srv, signer: signer, photos: photos}
}

type submission struct {
	fields map[string]string
	photo  []byte
	name   string
	token  signing.Token
}

func validFields() map[string]string {
	return map[string]string{
		"operator":    "Ana",
		"machine":     "MAQ-5",
		"product":     "Tapas",
		"order":       "OP-77",
		"description": "Atasco en la tolva",
	}
}

func (h *harness) post(t *testing.T, sub submission) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range sub.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.WriteField("form_id", sub.token.FormID))
	require.NoError(t, mw.WriteField("expires", sub.token.Expires))
	require.NoError(t, mw.WriteField("signature", sub.token.Signature))
	if sub.photo != nil {
		name := sub.name
		if name == "" {
			name = "falla.png"
		}
		fw, err := mw.CreateFormFile("photo", name)
		require.NoError(t, err)
		_, err = fw.Write(sub.photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)
	rec := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPageEmptyHistory(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)
	rec := h.get(t, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No hay reportes registrados todavía.")
	assert.NotContains(t, body, "<table>")
	assert.NotContains(t, body, "/history/export")
	assert.Contains(t, body, `name="signature"`)
	assert.Contains(t, body, `<option value="MAQ-2" selected>`)
}

func TestSubmitWithoutPhoto(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)

	rec := h.post(t, submission{fields: validFields(), token: h.signer.Issue()})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reporte enviado correctamente")
	rows, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].Operator)
	assert.Empty(t, rows[0].PhotoURL)
	assert.Zero(t, h.photos.Len())
	// Inputs are cleared for the next report.
	assert.NotContains(t, rec.Body.String(), `value="OP-77"`)
	assert.Contains(t, rec.Body.String(), "<td>OP-77</td>")
}

func TestSubmitWithPhoto(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)

	rec := h.post(t, submission{fields: validFields(), photo: pngHeader, token: h.signer.Issue()})

	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, strings.HasPrefix(rows[0].PhotoURL, "/photos/"))
	assert.Equal(t, 1, h.photos.Len())

	photo := h.get(t, rows[0].PhotoURL)
	assert.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "image/png", photo.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, photo.Body.Bytes())
}

func TestSubmitMissingFieldKeepsInputs(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)

	fields := validFields()
	fields["order"] = "  "
	rec := h.post(t, submission{fields: fields, photo: pngHeader, token: h.signer.Issue()})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Por favor, complete todos los campos.")
	assert.Contains(t, body, `value="Ana"`)
	assert.Contains(t, body, `<option value="MAQ-5" selected>`)
	assert.Zero(t, store.Len())
	assert.Zero(t, h.photos.Len())
}

func TestSubmitAppendFailure(t *testing.T) {
	h := newHarness(t, brokenAppends{}, nil)

	rec := h.post(t, submission{fields: validFields(), photo: pngHeader, token: h.signer.Issue()})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "sheets quota exceeded")
	assert.Contains(t, body, `value="Ana"`)
	assert.NotContains(t, body, "Reporte enviado correctamente")
	// The uploaded photo was removed again.
	assert.Zero(t, h.photos.Len())
}

func TestSubmitRejectsTokens(t *testing.T) {
	expired := time.Now().Add(-time.Minute).Unix()
	for _, tc := range []struct {
		name  string
		token func(*signing.Signer) signing.Token
		want  string
	}{
		{"missing", func(*signing.Signer) signing.Token { return signing.Token{} }, "no es válido"},
		{"tampered", func(s *signing.Signer) signing.Token {
			tok := s.Issue()
			tok.FormID = "other"
			return tok
		}, "no es válido"},
		{"expired", func(s *signing.Signer) signing.Token {
			return signing.Token{FormID: "f1", Expires: strconv.FormatInt(expired, 10), Signature: s.Sign("f1", expired)}
		}, "expiró"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			h := newHarness(t, store, nil)

			rec := h.post(t, submission{fields: validFields(), token: tc.token(h.signer)})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Contains(t, rec.Body.String(), `value="Ana"`)
			assert.Zero(t, store.Len())
		})
	}
}

func TestSubmitRejectsPhotos(t *testing.T) {
	for _, tc := range []struct {
		name  string
		file  string
		data  []byte
		want  string
		limit bool
	}{
		{"wrong extension", "falla.gif", pngHeader, "JPG o PNG", false},
		{"not an image", "falla.png", []byte("plain text, not a picture"), "JPG o PNG", false},
		{"too large", "falla.png", append(append([]byte(nil), pngHeader...), make([]byte, 1<<20)...), "tamaño máximo", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			h := newHarness(t, store, nil)

			rec := h.post(t, submission{fields: validFields(), photo: tc.data, name: tc.file, token: h.signer.Issue()})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Zero(t, store.Len())
			assert.Zero(t, h.photos.Len())
		})
	}
}

func TestConfigurationErrorStopsPage(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, credentials.NewLoader(""))

	page := h.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, page.Code)
	assert.Contains(t, page.Body.String(), "Error de configuración")
	assert.Contains(t, page.Body.String(), credentials.EnvKey)
	assert.NotContains(t, page.Body.String(), "<form")

	rec := h.post(t, submission{fields: validFields(), token: h.signer.Issue()})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, store.Len())
}

func TestHistoryFetchErrorStillRendersForm(t *testing.T) {
	h := newHarness(t, brokenReads{storage.NewMemoryStore()}, nil)
	rec := h.get(t, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No se pudo cargar el historial")
	assert.Contains(t, rec.Body.String(), `action="/reports"`)
}

func seed(t *testing.T, store *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []model.Report{
		{Timestamp: "2024-05-01 08:00:00", Operator: "Ana Pérez", Machine: "MAQ-2", Product: "P1", Order: "O1", Description: "d1"},
		{Timestamp: "2024-05-01 09:00:00", Operator: "Luis", Machine: "MAQ-5", Product: "P2", Order: "O2", Description: "d2"},
		{Timestamp: "2024-05-01 10:00:00", Operator: "ana maria", Machine: "MAQ-5", Product: "P3", Order: "O3", Description: "d3"},
	} {
		require.NoError(t, store.Append(ctx, r))
	}
}

func TestPageFiltersHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store)
	h := newHarness(t, store, nil)

	rec := h.get(t, "/?operator=ANA&machine=MAQ-5")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>O3</td>")
	assert.NotContains(t, body, "<td>O1</td>")
	assert.NotContains(t, body, "<td>O2</td>")
	assert.Contains(t, body, "/history/export?format=xlsx&amp;machine=MAQ-5&amp;operator=ANA")
}

func TestExportCSVFiltered(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store)
	h := newHarness(t, store, nil)

	rec := h.get(t, "/history/export?"+url.Values{"operator": {"ana"}, "format": {"csv"}}.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, history.CSVContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), history.CSVFileName)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Fecha y hora,"))
	assert.Contains(t, lines[1], "O1")
	assert.Contains(t, lines[2], "O3")
}

func TestExportXLSXDefault(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store)
	h := newHarness(t, store, nil)

	rec := h.get(t, "/history/export")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, history.XLSXContentType, rec.Header().Get("Content-Type"))
	// XLSX files are zip archives.
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestExportEmptyHistory(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)
	assert.Equal(t, http.StatusNotFound, h.get(t, "/history/export").Code)
}

func TestExportUnknownFormat(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store)
	h := newHarness(t, store, nil)
	assert.Equal(t, http.StatusBadRequest, h.get(t, "/history/export?format=pdf").Code)
}

func TestAPIReports(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store)
	h := newHarness(t, store, nil)

	rec := h.get(t, "/api/reports?machine=MAQ-5")

	require.Equal(t, http.StatusOK, rec.Code)
	var view history.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, []string{"MAQ-2", "MAQ-5"}, view.Machines)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "Luis", view.Rows[0].Operator)
}

func TestAPIReportsFetchError(t *testing.T) {
	h := newHarness(t, brokenReads{storage.NewMemoryStore()}, nil)
	rec := h.get(t, "/api/reports")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"fetch_failed"`)
}

func TestPhotoNotFound(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)
	assert.Equal(t, http.StatusNotFound, h.get(t, "/photos/missing").Code)
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestSubmitSameFormTwiceAppendsOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)
	token := h.signer.Issue()

	first := h.post(t, submission{fields: validFields(), token: token})
	require.Equal(t, http.StatusOK, first.Code)

	second := h.post(t, submission{fields: validFields(), token: token})
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Contains(t, second.Body.String(), "ya fue enviado")
	assert.Equal(t, 1, store.Len())
}

func TestRejectedSubmitIssuesUsableForm(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil)

	fields := validFields()
	fields["product"] = ""
	rec := h.post(t, submission{fields: fields, token: h.signer.Issue()})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The re-rendered page carries a fresh token that still submits.
	next := signing.Token{
		FormID:    hiddenValue(t, rec.Body.String(), "form_id"),
		Expires:   hiddenValue(t, rec.Body.String(), "expires"),
		Signature: hiddenValue(t, rec.Body.String(), "signature"),
	}
	ok := h.post(t, submission{fields: validFields(), token: next})
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, 1, store.Len())
}

func hiddenValue(t *testing.T, body, name string) string {
	t.Helper()
	marker := `name="` + name + `" value="`
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "hidden field %s not rendered", name)
	rest := body[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}
