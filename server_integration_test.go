package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"billscan/models"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	initDB()
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	r := gin.Default()
	setupRoutes(r)
	return r
}

func registerAndLogin(t *testing.T, r *gin.Engine, prefix string) string {
	t.Helper()
	// unique per run so reruns against the same database start clean
	username := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	body, _ := json.Marshal(map[string]string{"username": username, "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}
	return token
}

func createBill(t *testing.T, r *gin.Engine, token, place, mode, date string, price float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"place": place, "mode": mode, "date": date, "price": price})
	resp := performRequest(r, http.MethodPost, "/bills", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != 201 {
		t.Fatalf("create bill failed status=%d body=%s", resp.Code, resp.Body.String())
	}
}

// multipartReceipt builds a multipart body carrying a small fake png.
func multipartReceipt(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="receipt.png"`)
	h.Set("Content-Type", "image/png")
	part, _ := mw.CreatePart(h)
	_, _ = part.Write([]byte("fake png bytes"))
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestUploadExtractSanitizePersist(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "upl_user")

	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data":{"place":"  Cafe  ","mode":"Paytm","price":-5,"date":"not-a-date","rawText":"CAFE 5.00"}}`))
	}))
	defer ocr.Close()
	t.Setenv("OCR_URL", ocr.URL)

	body, contentType := multipartReceipt(t)
	resp := performRequest(r, http.MethodPost, "/bills/upload", body, token, contentType)
	if resp.Code != 201 {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		Bill models.Bill `json:"bill"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Bill.Place != "Cafe" || out.Bill.Mode != "UPI" || out.Bill.Price != 0 {
		t.Fatalf("bill not sanitized: %+v", out.Bill)
	}
	if time.Since(out.Bill.Date) > time.Minute {
		t.Fatalf("fallback date not ~now: %v", out.Bill.Date)
	}
	if out.Bill.ImagePath == "" {
		t.Fatal("persisted bill must reference the stored file")
	}
	if _, err := os.Stat(out.Bill.ImagePath); err != nil {
		t.Fatalf("stored file missing after success: %v", err)
	}
}

func TestUploadFailureDeletesStoredFile(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "upl_fail_user")

	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid image file or corrupted data"}`))
	}))
	defer ocr.Close()
	t.Setenv("OCR_URL", ocr.URL)

	body, contentType := multipartReceipt(t)
	resp := performRequest(r, http.MethodPost, "/bills/upload", body, token, contentType)
	if resp.Code != 500 {
		t.Fatalf("expected 500 got %d body=%s", resp.Code, resp.Body.String())
	}
	entries, err := os.ReadDir(uploadBaseDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("upload dir should be empty after failed extraction, has %d entries", len(entries))
	}
}

func TestUploadEdgeChecks(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "edge_user")

	// no file
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	_ = mw.Close()
	resp := performRequest(r, http.MethodPost, "/bills/upload", buf, token, mw.FormDataContentType())
	if resp.Code != 400 {
		t.Fatalf("expected 400 for missing file got %d", resp.Code)
	}

	// unsupported type
	buf = &bytes.Buffer{}
	mw = multipart.NewWriter(buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="notes.txt"`)
	h.Set("Content-Type", "text/plain")
	part, _ := mw.CreatePart(h)
	_, _ = part.Write([]byte("hello"))
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/bills/upload", buf, token, mw.FormDataContentType())
	if resp.Code != 400 {
		t.Fatalf("expected 400 for unsupported type got %d", resp.Code)
	}
}

func TestListPaginationClamps(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "page_user")
	createBill(t, r, token, "Shop", "Cash", "2024-03-10", 5)

	resp := performRequest(r, http.MethodGet, "/bills?page=0&limit=500", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Page != 1 || out.Limit != 100 {
		t.Fatalf("expected page=1 limit=100 got page=%d limit=%d", out.Page, out.Limit)
	}
}

func TestUpdateOwnershipIsolation(t *testing.T) {
	r := setupTestServer(t)
	tokenA := registerAndLogin(t, r, "owner_a")
	tokenB := registerAndLogin(t, r, "owner_b")
	createBill(t, r, tokenB, "B Place", "Card", "2024-04-01", 9)

	// find B's bill id
	resp := performRequest(r, http.MethodGet, "/bills", nil, tokenB, "")
	var page struct {
		Bills []models.Bill `json:"bills"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &page)
	if len(page.Bills) == 0 {
		t.Fatal("owner B has no bills")
	}
	id := page.Bills[0].ID

	body, _ := json.Marshal(map[string]any{"price": 1.0})
	resp = performRequest(r, http.MethodPatch, fmt.Sprintf("/bills/%d", id), bytes.NewBuffer(body), tokenA, "application/json")
	if resp.Code != 404 {
		t.Fatalf("expected 404 for cross-owner update got %d body=%s", resp.Code, resp.Body.String())
	}

	// the record is untouched
	resp = performRequest(r, http.MethodGet, "/bills", nil, tokenB, "")
	_ = json.Unmarshal(resp.Body.Bytes(), &page)
	if page.Bills[0].Price != 9 {
		t.Fatalf("cross-owner update mutated the bill: %+v", page.Bills[0])
	}
}

func TestUpdateValidationAndInvalidID(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "upd_user")

	body, _ := json.Marshal(map[string]any{"mode": "Paytm"})
	resp := performRequest(r, http.MethodPatch, "/bills/abc", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != 400 {
		t.Fatalf("expected 400 for malformed id got %d", resp.Code)
	}

	createBill(t, r, token, "Shop", "Cash", "2024-03-10", 5)
	resp = performRequest(r, http.MethodGet, "/bills", nil, token, "")
	var page struct {
		Bills []models.Bill `json:"bills"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &page)
	id := page.Bills[0].ID

	resp = performRequest(r, http.MethodPatch, fmt.Sprintf("/bills/%d", id), bytes.NewBuffer(body), token, "application/json")
	if resp.Code != 400 {
		t.Fatalf("expected 400 for invalid mode got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestMonthlySpendBuckets(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "spend_user")

	createBill(t, r, token, "A", "UPI", "2024-01-05", 10)
	createBill(t, r, token, "B", "UPI", "2024-01-20", 20)
	createBill(t, r, token, "C", "UPI", "2024-02-01", 30)

	resp := performRequest(r, http.MethodGet, "/analytics/monthly-spend", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("monthly spend failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		Data []struct {
			Month      string  `json:"month"`
			TotalSpend float64 `json:"totalSpend"`
		} `json:"data"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if len(out.Data) != 2 {
		t.Fatalf("expected 2 buckets got %+v", out.Data)
	}
	if out.Data[0].Month != "2024-01" || out.Data[0].TotalSpend != 30 {
		t.Fatalf("wrong first bucket: %+v", out.Data[0])
	}
	if out.Data[1].Month != "2024-02" || out.Data[1].TotalSpend != 30 {
		t.Fatalf("wrong second bucket: %+v", out.Data[1])
	}
}

func TestCurrentMonthSummary(t *testing.T) {
	r := setupTestServer(t)
	token := registerAndLogin(t, r, "month_user")

	now := time.Now().UTC()
	inMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := inMonth.AddDate(0, 1, 0)
	createBill(t, r, token, "In", "UPI", inMonth.Format(time.RFC3339), 12.34)
	createBill(t, r, token, "Out", "UPI", nextMonth.Format(time.RFC3339), 99)

	resp := performRequest(r, http.MethodGet, "/analytics/current-month", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("current month failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		Month      string  `json:"month"`
		BillsCount int64   `json:"billsCount"`
		TotalSpend float64 `json:"totalSpend"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	if out.BillsCount != 1 || out.TotalSpend != 12.34 {
		t.Fatalf("window must include the month start and exclude next month's start: %+v", out)
	}
	if out.Month != fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month())) {
		t.Fatalf("wrong month label %q", out.Month)
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	r := setupTestServer(t)
	resp := performRequest(r, http.MethodGet, "/bills", nil, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
