package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/log"
	"fintrack/internal/receipt"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f fakeGenerator) Generate(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	return f.response, f.err
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("database is closed") }

// Minimal PNG header, enough for content sniffing.
var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestServer(t *testing.T, gen receipt.Generator) *Server {
	t.Helper()
	store := memory.New()
	var scanner ReceiptScanner
	if gen != nil {
		scanner = receipt.NewExtractor(gen, 1024)
	}
	return NewServer(":0", log.New(log.Config{Output: io.Discard}), Options{
		Ledger:          services.NewLedgerService(store, nil),
		Receipts:        scanner,
		Store:           store,
		MaxReceiptBytes: 1024,
	})
}

func do(t *testing.T, srv *Server, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createAccount(t *testing.T, srv *Server, owner, body string) accountResponse {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/accounts", owner, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[accountResponse](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/healthz", "", "")
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("security headers missing: %v", rr.Header())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("request id header missing")
	}

	srv.store = failingPinger{}
	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store: status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "database is closed") {
		t.Errorf("readiness must not leak store errors: %s", rr.Body.String())
	}
}

func TestOwnerRequired(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, owner := range []string{"", "   ", "bad owner", strings.Repeat("x", 129)} {
		rr := do(t, srv, http.MethodGet, "/accounts", owner, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("owner %q: status=%d", owner, rr.Code)
		}
		if kind := decode[errorBody](t, rr).Error.Kind; kind != kindUnauthenticated {
			t.Fatalf("owner %q: kind=%s", owner, kind)
		}
	}
}

func TestLedgerScenario(t *testing.T) {
	srv := newTestServer(t, nil)
	owner := "owner-1"

	acc := createAccount(t, srv, owner, `{"name":"Main","type":"current","opening_balance":1000}`)
	if acc.Balance.String() != "1000.00" || !acc.IsDefault || acc.Type != "CURRENT" {
		t.Fatalf("unexpected account: %+v", acc)
	}

	rr := do(t, srv, http.MethodPost, "/transactions", owner,
		`{"account_id":"`+acc.ID+`","amount":50,"type":"expense","date":"2024-04-01","description":"groceries","category":"groceries"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transaction: status=%d body=%s", rr.Code, rr.Body.String())
	}
	tx := decode[transactionResponse](t, rr)
	if tx.Amount.String() != "50.00" || tx.Type != "EXPENSE" || tx.Date != "2024-04-01" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if rr.Header().Get("Location") != "/transactions/"+tx.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodGet, "/accounts/"+acc.ID, owner, "")
	if !strings.Contains(rr.Body.String(), `"balance":950.00`) {
		t.Fatalf("expected balance 950.00 as a JSON number, got %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/transactions/"+tx.ID, owner,
		`{"account_id":"`+acc.ID+`","amount":"50.00","type":"INCOME","date":"2024-04-01","description":"refund"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update transaction: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[transactionResponse](t, rr); got.Type != "INCOME" || got.Description != "refund" {
		t.Fatalf("unexpected updated transaction: %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/accounts/"+acc.ID, owner, "")
	if got := decode[accountResponse](t, rr).Balance.String(); got != "1050.00" {
		t.Fatalf("expected balance 1050.00, got %s", got)
	}

	rr = do(t, srv, http.MethodGet, "/accounts/"+acc.ID+"/transactions?limit=10", owner, "")
	list := decode[struct {
		Transactions []transactionResponse `json:"transactions"`
	}](t, rr)
	if len(list.Transactions) != 1 || list.Transactions[0].ID != tx.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	rr = do(t, srv, http.MethodGet, "/accounts", owner, "")
	accounts := decode[struct {
		Accounts []accountResponse `json:"accounts"`
	}](t, rr)
	if len(accounts.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts.Accounts))
	}

	// Another owner sees nothing.
	rr = do(t, srv, http.MethodGet, "/transactions/"+tx.ID, "owner-2", "")
	if rr.Code != http.StatusNotFound || decode[errorBody](t, rr).Error.Kind != "transaction_not_found" {
		t.Fatalf("foreign owner: status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/accounts/"+acc.ID+"/transactions", "owner-2", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign owner list: status=%d", rr.Code)
	}
}

func TestRecurringTransactionSchedule(t *testing.T) {
	srv := newTestServer(t, nil)
	acc := createAccount(t, srv, "owner-1", `{"name":"Main","type":"SAVINGS"}`)

	rr := do(t, srv, http.MethodPost, "/transactions", "owner-1",
		`{"account_id":"`+acc.ID+`","amount":700,"type":"EXPENSE","date":"2024-01-31","is_recurring":true,"recurring_interval":"monthly","description":"rent"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	tx := decode[transactionResponse](t, rr)
	if tx.RecurringInterval == nil || *tx.RecurringInterval != "MONTHLY" {
		t.Fatalf("interval = %v", tx.RecurringInterval)
	}
	if tx.NextRecurringDate == nil || *tx.NextRecurringDate != "2024-02-29" {
		t.Fatalf("next recurring date = %v", tx.NextRecurringDate)
	}
}

func TestTransactionValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	acc := createAccount(t, srv, "owner-1", `{"name":"Main","type":"CURRENT","opening_balance":"10.00"}`)
	valid := func(overrides string) string {
		return `{"account_id":"` + acc.ID + `","type":"EXPENSE","date":"2024-04-01"` + overrides + `}`
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"negative amount", http.MethodPost, "/transactions", valid(`,"amount":-5`), 422, "invalid_amount"},
		{"exponent amount", http.MethodPost, "/transactions", valid(`,"amount":1e3`), 422, "invalid_amount"},
		{"sub-cent amount", http.MethodPost, "/transactions", valid(`,"amount":1.234`), 422, "invalid_amount"},
		{"missing amount", http.MethodPost, "/transactions", valid(``), 422, "invalid_amount"},
		{"bad date", http.MethodPost, "/transactions", `{"account_id":"` + acc.ID + `","type":"EXPENSE","date":"01/04/2024","amount":1}`, 422, "invalid_input"},
		{"bad type", http.MethodPost, "/transactions", `{"account_id":"` + acc.ID + `","type":"TRANSFER","date":"2024-04-01","amount":1}`, 422, "invalid_input"},
		{"bad interval", http.MethodPost, "/transactions", valid(`,"amount":1,"is_recurring":true,"recurring_interval":"HOURLY"`), 422, "invalid_interval"},
		{"unknown account", http.MethodPost, "/transactions", `{"account_id":"nope","type":"EXPENSE","date":"2024-04-01","amount":1}`, 404, "account_not_found"},
		{"malformed json", http.MethodPost, "/transactions", `{"account_id":`, 400, kindBadRequest},
		{"unknown field", http.MethodPost, "/transactions", valid(`,"amount":1,"owner_id":"x"`), 400, kindBadRequest},
		{"trailing data", http.MethodPost, "/transactions", valid(`,"amount":1`) + `{}`, 400, kindBadRequest},
		{"update unknown transaction", http.MethodPut, "/transactions/nope", valid(`,"amount":1`), 404, "transaction_not_found"},
		{"bad limit", http.MethodGet, "/accounts/" + acc.ID + "/transactions?limit=abc", "", 422, "invalid_input"},
		{"bad account type", http.MethodPost, "/accounts", `{"name":"x","type":"CHECKING"}`, 422, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, "owner-1", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if kind := decode[errorBody](t, rr).Error.Kind; kind != tt.kind {
				t.Fatalf("kind=%s want %s", kind, tt.kind)
			}
		})
	}

	// Nothing above touched the balance.
	rr := do(t, srv, http.MethodGet, "/accounts/"+acc.ID, "owner-1", "")
	if got := decode[accountResponse](t, rr).Balance.String(); got != "10.00" {
		t.Fatalf("balance changed to %s", got)
	}
}

func multipartBody(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "receipt.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestScanReceipt(t *testing.T) {
	okResponse := "```json\n" + `{"amount": 12.5, "date": "2024-03-05", "description": "Lunch", "merchantName": "Cafe", "category": "food"}` + "\n```"
	tests := []struct {
		name    string
		gen     receipt.Generator
		content []byte
		status  int
		kind    string
	}{
		{"recognised", fakeGenerator{response: okResponse}, pngImage, http.StatusOK, ""},
		{"model garbage", fakeGenerator{response: "I cannot read this"}, pngImage, http.StatusBadGateway, "extraction_format"},
		{"not an image", fakeGenerator{response: okResponse}, []byte("hello, plain text"), http.StatusUnsupportedMediaType, "receipt_rejected"},
		{"too large", fakeGenerator{response: okResponse}, append(append([]byte{}, pngImage...), make([]byte, 2048)...), http.StatusRequestEntityTooLarge, "receipt_rejected"},
		{"scanning disabled", nil, pngImage, http.StatusServiceUnavailable, kindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.gen)
			body, contentType := multipartBody(t, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/receipts/scan", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set(OwnerHeader, "owner-1")
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if tt.kind != "" {
				if kind := decode[errorBody](t, rr).Error.Kind; kind != tt.kind {
					t.Fatalf("kind=%s want %s", kind, tt.kind)
				}
				return
			}
			got := decode[receiptResponse](t, rr)
			if !got.Recognised || got.Amount.String() != "12.50" || got.Date != "2024-03-05" || got.MerchantName != "Cafe" || got.Category != "food" {
				t.Fatalf("unexpected receipt: %+v", got)
			}
		})
	}
}

func TestScanReceiptRequiresFile(t *testing.T) {
	srv := newTestServer(t, fakeGenerator{})
	rr := do(t, srv, http.MethodPost, "/receipts/scan", "owner-1", `{"file":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOversizedJSONBody(t *testing.T) {
	srv := newTestServer(t, nil)
	acc := createAccount(t, srv, "owner-1", `{"name":"Main","type":"CURRENT"}`)
	valid := `{"account_id":"` + acc.ID + `","amount":"1.00","type":"EXPENSE","date":"2024-04-01"}`

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"huge description", "/transactions",
			`{"account_id":"` + acc.ID + `","description":"` + strings.Repeat("a", maxJSONBody) + `"}`,
			http.StatusRequestEntityTooLarge},
		{"padding after object", "/transactions", valid + strings.Repeat(" ", maxJSONBody), http.StatusRequestEntityTooLarge},
		{"huge account name", "/accounts", `{"name":"` + strings.Repeat("a", maxJSONBody) + `"}`, http.StatusRequestEntityTooLarge},
		{"trailing data", "/transactions", valid + ` {}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, "owner-1", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d; body=%.200s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
