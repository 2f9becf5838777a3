package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/alien2112/safelines-sub000/pkg/httpcache"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	api := g.Group("/api")
	svc := service.NewMemoryService()
	store := storage.NewMemoryStore()
	RegisterContentRoutes(api, svc, Options{Policy: httpcache.Policy{
		BrowserMaxAge:        time.Minute,
		SharedMaxAge:         5 * time.Minute,
		StaleWhileRevalidate: 10 * time.Minute,
	}})
	RegisterJobRoutes(api, svc, store, 1<<20)
	return g, store
}

func doJSON(g *gin.Engine, method, path, body string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	g.ServeHTTP(w, req)
	return w
}

type saveResponse struct {
	ID      string                 `json:"id"`
	Created bool                   `json:"created"`
	Item    map[string]interface{} `json:"item"`
}

func decodeSave(t *testing.T, w *httptest.ResponseRecorder) saveResponse {
	t.Helper()
	var res saveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	return items
}

func TestContentHandler_CreateThenUpdateScenario(t *testing.T) {
	g, _ := newTestEngine(t)

	w := doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":"A","published":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeSave(t, w)
	require.NotEmpty(t, created.ID)

	w = doJSON(g, http.MethodGet, "/api/content/blogs", "")
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeList(t, w)
	require.Len(t, items, 1)
	require.Equal(t, "A", items[0]["title"])

	w = doJSON(g, http.MethodPost, "/api/content/blogs", `{"id":"`+created.ID+`","title":"B"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(g, http.MethodGet, "/api/content/blogs", "")
	items = decodeList(t, w)
	require.Len(t, items, 1)
	require.Equal(t, "B", items[0]["title"])
	require.Equal(t, created.ID, items[0]["id"])
}

func TestContentHandler_NumericStringIDUpsert(t *testing.T) {
	g, _ := newTestEngine(t)

	w := doJSON(g, http.MethodPost, "/api/content/services", `{"id":"1","title":"Inspection"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "1", decodeSave(t, w).ID)

	w = doJSON(g, http.MethodPost, "/api/content/services", `{"id":"1","title":"Inspection & Testing"}`)
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeList(t, doJSON(g, http.MethodGet, "/api/content/services", ""))
	require.Len(t, items, 1)
	require.Equal(t, "1", items[0]["id"])
	require.Equal(t, "Inspection & Testing", items[0]["title"])

	w = doJSON(g, http.MethodGet, "/api/content/services/1", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestContentHandler_CacheCoherence(t *testing.T) {
	g, _ := newTestEngine(t)
	require.Equal(t, http.StatusCreated, doJSON(g, http.MethodPost, "/api/content/jobs", `{"title":"Engineer","published":true}`).Code)

	w := doJSON(g, http.MethodGet, "/api/content/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	require.Equal(t, "public, max-age=60, s-maxage=300, stale-while-revalidate=600", w.Header().Get("Cache-Control"))
	require.NotEmpty(t, w.Header().Get("Last-Modified"))

	w = doJSON(g, http.MethodGet, "/api/content/jobs", "", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, w.Code)
	require.Empty(t, w.Body.Bytes())
	require.Equal(t, etag, w.Header().Get("ETag"))

	w = doJSON(g, http.MethodGet, "/api/content/jobs", "", "If-None-Match", `"other", W/`+etag)
	require.Equal(t, http.StatusNotModified, w.Code)

	// a hidden draft still moves the validator
	require.Equal(t, http.StatusCreated, doJSON(g, http.MethodPost, "/api/content/jobs", `{"title":"Draft","published":false}`).Code)
	w = doJSON(g, http.MethodGet, "/api/content/jobs", "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEqual(t, etag, w.Header().Get("ETag"))
	require.Len(t, decodeList(t, w), 1)
}

func TestContentHandler_DeleteOfOlderItemChangesETag(t *testing.T) {
	g, _ := newTestEngine(t)
	first := decodeSave(t, doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":"old","published":true}`))
	doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":"new","published":true}`)

	etag := doJSON(g, http.MethodGet, "/api/content/blogs", "").Header().Get("ETag")
	require.Equal(t, http.StatusNoContent, doJSON(g, http.MethodDelete, "/api/content/blogs?id="+first.ID, "").Code)

	w := doJSON(g, http.MethodGet, "/api/content/blogs", "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeList(t, w), 1)
}

func TestContentHandler_AdminListing(t *testing.T) {
	g, _ := newTestEngine(t)
	doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":"live","published":true}`)
	doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":"draft","published":false}`)
	doJSON(g, http.MethodPost, "/api/content/services", `{"title":"hidden","visible":false}`)

	public := doJSON(g, http.MethodGet, "/api/content/blogs", "")
	require.Len(t, decodeList(t, public), 1)
	etag := public.Header().Get("ETag")

	w := doJSON(g, http.MethodGet, "/api/content/blogs?includeUnpublished=true", "", "If-None-Match", etag)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeList(t, w), 2)
	require.Equal(t, httpcache.NoStore, w.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))

	require.Empty(t, decodeList(t, doJSON(g, http.MethodGet, "/api/content/services", "")))
	require.Len(t, decodeList(t, doJSON(g, http.MethodGet, "/api/content/services?includeUnpublished=true", "")), 1)

	draft := decodeList(t, w)
	var draftID string
	for _, it := range draft {
		if it["title"] == "draft" {
			draftID = it["id"].(string)
		}
	}
	require.Equal(t, http.StatusNotFound, doJSON(g, http.MethodGet, "/api/content/blogs/"+draftID, "").Code)
	require.Equal(t, http.StatusOK, doJSON(g, http.MethodGet, "/api/content/blogs/"+draftID+"?includeUnpublished=true", "").Code)
}

func TestContentHandler_Errors(t *testing.T) {
	g, _ := newTestEngine(t)

	require.Equal(t, http.StatusNotFound, doJSON(g, http.MethodGet, "/api/content/products", "").Code)
	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodPost, "/api/content/blogs", `{"title":`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodPost, "/api/content/blogs", `{"published":"yes"}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodDelete, "/api/content/blogs", "").Code)
	require.Equal(t, http.StatusNotFound, doJSON(g, http.MethodGet, "/api/content/blogs/missing", "").Code)

	// deletes are idempotent
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusNoContent, doJSON(g, http.MethodDelete, "/api/content/jobs?id=42", "").Code)
	}
}

func TestContentHandler_Reorder(t *testing.T) {
	g, _ := newTestEngine(t)
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		ids = append(ids, decodeSave(t, doJSON(g, http.MethodPost, "/api/content/services", `{"title":"`+title+`"}`)).ID)
	}

	w := doJSON(g, http.MethodPost, "/api/content/services/reorder", `{"id":"`+ids[1]+`","direction":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)

	items := decodeList(t, doJSON(g, http.MethodGet, "/api/content/services", ""))
	require.Equal(t, "two", items[0]["title"])
	require.Equal(t, "one", items[1]["title"])
	require.EqualValues(t, 0, items[0]["order"])
	require.EqualValues(t, 1, items[1]["order"])

	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodPost, "/api/content/services/reorder", `{"id":"`+ids[1]+`","direction":"left"}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodPost, "/api/content/services/reorder", `{"direction":"up"}`).Code)
	require.Equal(t, http.StatusNotFound, doJSON(g, http.MethodPost, "/api/content/services/reorder", `{"id":"nope","direction":"up"}`).Code)
	require.Equal(t, http.StatusBadRequest, doJSON(g, http.MethodPost, "/api/content/blogs/reorder", `{"id":"x","direction":"up"}`).Code)
}

func TestJobsHandler_MultipartWithImage(t *testing.T) {
	g, store := newTestEngine(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("data", `{"title":"Safety Officer","titleAr":"مسؤول السلامة"}`))
	require.NoError(t, mw.WriteField("published", "true"))
	require.NoError(t, mw.WriteField("id", "7"))
	fw, err := mw.CreateFormFile("file", "job.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR-rest-of-image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decodeSave(t, w)
	require.Equal(t, "7", res.ID)
	require.Equal(t, true, res.Item["published"])
	require.Equal(t, "مسؤول السلامة", res.Item["titleAr"])

	listing, err := store.List(req.Context(), "careers")
	require.NoError(t, err)
	require.Len(t, listing.Objects, 1)
	require.Equal(t, "/api/images/"+listing.Objects[0].ID, res.Item["image"])

	// second write without a file updates the same job
	body = &bytes.Buffer{}
	mw = multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("id", "7"))
	require.NoError(t, mw.WriteField("published", "false"))
	require.NoError(t, mw.Close())
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decodeSave(t, w)
	require.Equal(t, false, res.Item["published"])
	require.Equal(t, "Safety Officer", res.Item["title"])
}

func TestJobsHandler_BadData(t *testing.T) {
	g, _ := newTestEngine(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("data", `[1,2,3]`))
	require.NoError(t, mw.Close())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(g, http.MethodPost, "/api/jobs", `{"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobsHandler_InvalidPayloadStoresNoImage(t *testing.T) {
	g, store := newTestEngine(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("data", `{"title":"Welder","published":"yes"}`))
	fw, err := mw.CreateFormFile("file", "job.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR-rest-of-image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	listing, err := store.List(req.Context(), "careers")
	require.NoError(t, err)
	require.Empty(t, listing.Objects)
}
