package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moreiraracing/taller-motos/internal/cloudinary"
	"github.com/moreiraracing/taller-motos/internal/config"
	"github.com/moreiraracing/taller-motos/internal/invoice"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/internal/storage"
	"github.com/moreiraracing/taller-motos/pkg/database"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

// fakeUploader stands in for Cloudinary
type fakeUploader struct {
	uploadFunc func(ctx context.Context, filename string, content []byte, folder string) (*cloudinary.UploadResult, error)
	folders    []string
}

func (f *fakeUploader) Enabled() bool { return true }

func (f *fakeUploader) Sign(params map[string]string) (*cloudinary.Signature, error) {
	return &cloudinary.Signature{Signature: "abc", Timestamp: 1700000000, APIKey: "1234", CloudName: "demo"}, nil
}

func (f *fakeUploader) Upload(ctx context.Context, filename string, content []byte, folder string) (*cloudinary.UploadResult, error) {
	f.folders = append(f.folders, folder)
	if f.uploadFunc != nil {
		return f.uploadFunc(ctx, filename, content, folder)
	}
	return &cloudinary.UploadResult{PublicID: "x", SecureURL: "https://res.cloudinary.com/demo/image/upload/" + filename}, nil
}

type stubGenerator struct {
	generateFunc func(ctx context.Context, req invoice.Request) (*invoice.Result, error)
}

func (s *stubGenerator) Generate(ctx context.Context, req invoice.Request) (*invoice.Result, error) {
	return s.generateFunc(ctx, req)
}

type testEnv struct {
	router    http.Handler
	deps      Dependencies
	uploadDir string
	docDir    string
}

func newTestEnv(t *testing.T, mutate func(d *Dependencies)) *testEnv {
	t.Helper()
	zl := zap.NewNop()
	ctx := context.Background()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "taller.db")}, zl)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	migrator := database.NewMigrator(db, zl)
	require.NoError(t, migrator.RunMigrations(ctx, "../../../migrations"))
	require.NoError(t, migrator.EnsureColumns(ctx, repository.RequiredColumns))

	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	docDir := filepath.Join(root, "invoices")
	uploads := storage.NewLocalFileStorage(uploadDir, zl)
	documents := storage.NewLocalFileStorage(docDir, zl)

	logger := utils.NewKVLogger(zl)
	services := repository.NewServiceRepository(db.DB, zl)
	ledger := repository.NewInvoiceRepository(db.DB, zl)
	resolver := invoice.NewImageResolver(invoice.ResolverConfig{PublicRoot: root, Timeout: time.Second, Concurrency: 2}, nil, logger)
	renderer := invoice.NewRenderer(invoice.Branding{ShopName: "Taller de Motos Moreira Racing", Tagline: "Gracias"}, resolver, logger)

	deps := Dependencies{
		Clients:       repository.NewClientRepository(db.DB, zl),
		Motos:         repository.NewMotoRepository(db.DB, zl),
		Services:      services,
		Ledger:        ledger,
		Invoices:      invoice.NewGenerator(services, renderer, documents, ledger, logger),
		Documents:     documents,
		Uploads:       uploads,
		DB:            db,
		Features:      config.Features{UploadEnabled: true},
		MaxUploadSize: 64 << 10,
	}
	if mutate != nil {
		mutate(&deps)
	}

	cfg := DefaultServerConfig()
	cfg.UploadsDir = uploadDir
	srv := NewServer(cfg, deps, logger)

	return &testEnv{router: srv.Router(), deps: deps, uploadDir: uploadDir, docDir: docDir}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Detail  string          `json:"detail"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doMultipart(t *testing.T, method, path string, fields map[string]string, fileField, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type idOnly struct {
	ID int64 `json:"id"`
}

type serviceBody struct {
	ID          int64  `json:"id"`
	MotoID      int64  `json:"moto_id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Cost        string `json:"cost"`
	Completed   bool   `json:"completed"`
	ImagePath   string `json:"image_path"`
	Plate       string `json:"plate"`
}

// seed creates a client, a moto and the given service costs over HTTP
func (e *testEnv) seed(t *testing.T, costs ...string) (motoID int64, serviceIDs []int64) {
	t.Helper()
	var client idOnly
	w := e.do(t, http.MethodPost, "/clients", map[string]string{"name": "José Muñoz", "phone": "0991112222"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &client)

	var moto idOnly
	w = e.do(t, http.MethodPost, "/motos", map[string]interface{}{"client_id": client.ID, "brand": "Yamaha", "model": "FZ 2.0", "plate": "IB-123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &moto)

	for i, cost := range costs {
		var svc idOnly
		w = e.do(t, http.MethodPost, "/services", map[string]interface{}{
			"moto_id":     moto.ID,
			"description": fmt.Sprintf("Servicio %d", i+1),
			"date":        "2024-01-06",
			"cost":        cost,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		decode(t, w, &svc)
		serviceIDs = append(serviceIDs, svc.ID)
	}
	return moto.ID, serviceIDs
}

func TestHealthAndDiagnostics(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = env.do(t, http.MethodGet, "/db-check", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w, nil).Success)

	w = env.do(t, http.MethodGet, "/features", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uploadEnabled":true,"cloudinaryEnabled":false}`, w.Body.String())

	w = env.do(t, http.MethodOptions, "/clients", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestCloudinarySign(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(t, http.MethodGet, "/cloudinary-sign", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("configured", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) {
			d.Uploader = &fakeUploader{}
			d.Features.CloudinaryEnabled = true
		})
		w := env.do(t, http.MethodGet, "/cloudinary-sign", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"signature":"abc","timestamp":1700000000,"api_key":"1234","cloud_name":"demo"}`, w.Body.String())
	})
}

func TestClientCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/clients", map[string]string{"phone": "099"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w, nil).Error, "name is required")

	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	w = env.do(t, http.MethodPost, "/clients", map[string]string{"name": "Ana", "address": "Av. Amazonas"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &created)
	assert.Positive(t, created.ID)

	path := fmt.Sprintf("/clients/%d", created.ID)
	w = env.do(t, http.MethodPut, path, map[string]string{"name": "Ana María"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &created)
	assert.Equal(t, "Ana María", created.Name)

	var list []idOnly
	w = env.do(t, http.MethodGet, "/clients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, map[string]string{"name": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/clients/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/clients/0", nil).Code)
}

func TestMotoValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/motos", map[string]interface{}{"client_id": 99, "brand": "Honda", "model": "CB190"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w, nil).Error, "does not exist")

	w = env.do(t, http.MethodPost, "/motos", map[string]interface{}{"client_id": 1, "model": "CB190"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	motoID, _ := env.seed(t)
	var moto struct {
		Plate      string `json:"plate"`
		ClientName string `json:"client_name"`
	}
	w = env.do(t, http.MethodPut, fmt.Sprintf("/motos/%d", motoID), map[string]string{"plate": "XYZ-999"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &moto)
	assert.Equal(t, "XYZ-999", moto.Plate)
	assert.Equal(t, "José Muñoz", moto.ClientName)
}

func TestServiceCreateAndUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	motoID, ids := env.seed(t, "25.50")

	var svc serviceBody
	w := env.do(t, http.MethodGet, fmt.Sprintf("/services/%d", ids[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &svc)
	assert.Equal(t, "2024-01-06", svc.Date)
	assert.Equal(t, "25.5", svc.Cost)
	assert.Equal(t, "IB-123", svc.Plate)

	t.Run("validation", func(t *testing.T) {
		for _, body := range []map[string]interface{}{
			{"moto_id": motoID, "description": "x", "date": "06/01/2024", "cost": 1},
			{"moto_id": motoID, "description": " ", "date": "2024-01-06", "cost": 1},
			{"moto_id": motoID, "description": "x", "date": "2024-01-06", "cost": -1},
			{"moto_id": motoID, "description": "x", "date": "2024-01-06"},
			{"moto_id": 999, "description": "x", "date": "2024-01-06", "cost": 1},
		} {
			w := env.do(t, http.MethodPost, "/services", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("multipart create stores the image", func(t *testing.T) {
		w := env.doMultipart(t, http.MethodPost, "/services", map[string]string{
			"moto_id":     fmt.Sprint(motoID),
			"description": "Pintura",
			"date":        "2024-02-01",
			"cost":        "80",
			"completed":   "true",
		}, "image", "mi foto.png", pngBytes(t))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created serviceBody
		decode(t, w, &created)
		assert.True(t, created.Completed)
		require.True(t, strings.HasPrefix(created.ImagePath, "/uploads/services/"), created.ImagePath)
		assert.True(t, strings.HasSuffix(created.ImagePath, "_mi_foto.png"))
		assert.FileExists(t, filepath.Join(env.uploadDir, "services", filepath.Base(created.ImagePath)))

		// served back under /uploads
		w = env.do(t, http.MethodGet, created.ImagePath, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("upload appends, image_path replaces", func(t *testing.T) {
		path := fmt.Sprintf("/services/%d", ids[0])

		w := env.doMultipart(t, http.MethodPut, path, nil, "image", "a.png", pngBytes(t))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w = env.doMultipart(t, http.MethodPut, path, nil, "image", "b.png", pngBytes(t))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated serviceBody
		decode(t, w, &updated)
		refs := strings.Split(updated.ImagePath, ",")
		require.Len(t, refs, 2)
		assert.True(t, strings.HasSuffix(refs[0], "_a.png"))
		assert.True(t, strings.HasSuffix(refs[1], "_b.png"))

		w = env.doMultipart(t, http.MethodPut, path, map[string]string{"image_path": "https://x/base.jpg"}, "image", "c.png", pngBytes(t))
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &updated)
		refs = strings.Split(updated.ImagePath, ",")
		require.Len(t, refs, 2)
		assert.Equal(t, "https://x/base.jpg", refs[0])

		w = env.do(t, http.MethodPut, path, map[string]interface{}{"image_path": "", "completed": true, "cost": "30"})
		require.Equal(t, http.StatusOK, w.Code)
		updated = serviceBody{}
		decode(t, w, &updated)
		assert.Empty(t, updated.ImagePath)
		assert.True(t, updated.Completed)
		assert.Equal(t, "30", updated.Cost)
	})

	t.Run("multi-line description is kept", func(t *testing.T) {
		path := fmt.Sprintf("/services/%d", ids[0])
		w := env.do(t, http.MethodPut, path, map[string]interface{}{"description": "Cambio de aceite\nFrenos\x00"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated serviceBody
		decode(t, env.do(t, http.MethodGet, path, nil), &updated)
		assert.Equal(t, "Cambio de aceite\nFrenos", updated.Description)
	})

	t.Run("rejected uploads", func(t *testing.T) {
		path := fmt.Sprintf("/services/%d", ids[0])

		w := env.doMultipart(t, http.MethodPut, path, nil, "image", "notes.txt", []byte("just some text"))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.doMultipart(t, http.MethodPut, path, nil, "image", "big.png", append(pngBytes(t), make([]byte, 70<<10)...))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		w = env.doMultipart(t, http.MethodPut, path, map[string]string{"completed": "maybe"}, "", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/services/%d", ids[0])
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, map[string]string{"description": "x"}).Code)
	})
}

func TestServiceImageGoesToCloudinaryWhenEnabled(t *testing.T) {
	uploader := &fakeUploader{}
	env := newTestEnv(t, func(d *Dependencies) {
		d.Uploader = uploader
		d.Features.CloudinaryEnabled = true
	})
	_, ids := env.seed(t, "10")

	w := env.doMultipart(t, http.MethodPut, fmt.Sprintf("/services/%d", ids[0]), nil, "image", "a.png", pngBytes(t))
	require.Equal(t, http.StatusOK, w.Code)

	var svc serviceBody
	decode(t, w, &svc)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/a.png", svc.ImagePath)
	assert.Equal(t, []string{"taller-motos/services"}, uploader.folders)

	// a failing remote upload keeps the image locally
	uploader.uploadFunc = func(ctx context.Context, filename string, content []byte, folder string) (*cloudinary.UploadResult, error) {
		return nil, errors.New("timeout")
	}
	w = env.doMultipart(t, http.MethodPut, fmt.Sprintf("/services/%d", ids[0]), nil, "image", "b.png", pngBytes(t))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &svc)
	refs := strings.Split(svc.ImagePath, ",")
	require.Len(t, refs, 2)
	assert.True(t, strings.HasPrefix(refs[1], "/uploads/services/"))
}

func TestUpload(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.doMultipart(t, http.MethodPost, "/upload", nil, "file", "x.png", pngBytes(t))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res uploadResponse
		decode(t, w, &res)
		assert.True(t, strings.HasPrefix(res.LocalPath, "/uploads/services/"))
		assert.Nil(t, res.Cloudinary)

		w = env.doMultipart(t, http.MethodPost, "/upload", map[string]string{"a": "b"}, "", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cloudinary", func(t *testing.T) {
		uploader := &fakeUploader{}
		env := newTestEnv(t, func(d *Dependencies) {
			d.Uploader = uploader
			d.Features.CloudinaryEnabled = true
		})
		w := env.doMultipart(t, http.MethodPost, "/upload", nil, "image", "x.png", pngBytes(t))
		require.Equal(t, http.StatusOK, w.Code)

		var res uploadResponse
		decode(t, w, &res)
		require.NotNil(t, res.Cloudinary)
		assert.Equal(t, []string{"taller-motos/uploads"}, uploader.folders)
	})

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) { d.Features.UploadEnabled = false })
		w := env.doMultipart(t, http.MethodPost, "/upload", nil, "file", "x.png", pngBytes(t))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestInvoiceFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	motoID, ids := env.seed(t, "120.50", "45.00")

	w := env.do(t, http.MethodPost, "/invoices", map[string]interface{}{"serviceIds": ids, "reference": "F-001"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="historial.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "165.50", w.Header().Get("X-Invoice-Total"))
	assert.Empty(t, w.Header().Get(ledgerErrorHeader))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	assert.FileExists(t, filepath.Join(env.docDir, "historial.pdf"))

	// legacy key, whole moto
	w = env.do(t, http.MethodPost, "/invoices", map[string]interface{}{"id_moto": motoID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "historial1.pdf", w.Header().Get("X-Invoice-Name"))

	var lines []struct {
		ServiceID int64  `json:"service_id"`
		Total     string `json:"total"`
		Document  string `json:"pdf_path"`
	}
	w = env.do(t, http.MethodGet, "/invoices?document=historial.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &lines)
	require.Len(t, lines, 2)
	assert.Equal(t, lines[0].Document, lines[1].Document)
	assert.Equal(t, filepath.Join(env.docDir, "historial.pdf"), lines[0].Document)

	w = env.do(t, http.MethodGet, "/invoices", nil)
	decode(t, w, &lines)
	assert.Len(t, lines, 4)

	w = env.do(t, http.MethodGet, "/invoices/files/historial.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = env.do(t, http.MethodGet, "/invoices/files/historial.pdf/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Page-Count"))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/invoices/files/historial.pdf/preview?page=4", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/invoices/files/historial.pdf/preview?page=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/invoices/files/nope.pdf", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/invoices/files/..%2Ftaller.db", nil).Code)

	w = env.do(t, http.MethodGet, "/invoices/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestInvoiceErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	motoID, _ := env.seed(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"no selector", map[string]interface{}{}, http.StatusBadRequest},
		{"broken json", "{", http.StatusBadRequest},
		{"empty list", map[string]interface{}{"serviceIds": []int{}}, http.StatusBadRequest},
		{"negative id", map[string]interface{}{"serviceId": -4}, http.StatusBadRequest},
		{"moto without services", map[string]interface{}{"motoId": motoID}, http.StatusNotFound},
		{"unknown service", map[string]interface{}{"serviceId": 4242}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/invoices", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w, nil).Error)
		})
	}

	entries, err := os.ReadDir(env.docDir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestInvoiceFailureMapping(t *testing.T) {
	doc := &invoice.Document{Content: []byte("%PDF-1.3"), Pages: 1, Total: decimal.NewFromInt(30)}

	t.Run("ledger failure still delivers the document", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) {
			d.Invoices = &stubGenerator{generateFunc: func(ctx context.Context, req invoice.Request) (*invoice.Result, error) {
				return &invoice.Result{Name: "historial3.pdf", Document: doc},
					&invoice.PersistenceError{ServiceID: 2, Err: errors.New("disk I/O error")}
			}}
		})
		w := env.do(t, http.MethodPost, "/invoices", map[string]interface{}{"serviceId": 1})
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "%PDF-1.3", w.Body.String())
		assert.Equal(t, "historial3.pdf", w.Header().Get("X-Invoice-Name"))
		assert.Contains(t, w.Header().Get(ledgerErrorHeader), "service 2")
	})

	t.Run("render failure", func(t *testing.T) {
		env := newTestEnv(t, func(d *Dependencies) {
			d.Invoices = &stubGenerator{generateFunc: func(ctx context.Context, req invoice.Request) (*invoice.Result, error) {
				return nil, &invoice.RenderError{Stage: "store", Err: errors.New("read-only file system")}
			}}
		})
		w := env.do(t, http.MethodPost, "/invoices", map[string]interface{}{"serviceId": 1})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env2 := decode(t, w, nil)
		assert.Equal(t, "error generating invoice", env2.Error)
		assert.Contains(t, env2.Detail, "read-only")
	})

	t.Run("selector reaches the generator", func(t *testing.T) {
		var got invoice.Request
		env := newTestEnv(t, func(d *Dependencies) {
			d.Invoices = &stubGenerator{generateFunc: func(ctx context.Context, req invoice.Request) (*invoice.Result, error) {
				got = req
				return &invoice.Result{Name: "historial.pdf", Document: doc}, nil
			}}
		})
		w := env.do(t, http.MethodPost, "/invoices", map[string]interface{}{"serviceIds": []int{9, 5, 9}, "reference": "R"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, invoice.ByServiceList{ServiceIDs: []int64{9, 5}}, got.Selector)
		assert.Equal(t, "R", got.Reference)
	})
}
