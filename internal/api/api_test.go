package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/recordstore"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/wallet"
)

const recordPath = "/programs/test-program/records/words"

// testEnv sets up a temp ledger, service, and router for testing.
func testEnv(t *testing.T) http.Handler {
	t.Helper()
	svc := recordservice.NewService(testutil.TestLedger(t), nil, testutil.Logger())
	return NewRouter(svc, testutil.Logger())
}

// signer creates a throwaway keystore and returns it with its identity.
func signer(t *testing.T) (*wallet.Keystore, models.Identity) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keystore.yaml")
	id, err := wallet.GenerateKeystore(path)
	if err != nil {
		t.Fatalf("GenerateKeystore: %v", err)
	}
	k, err := wallet.OpenKeystore(path, nil)
	if err != nil {
		t.Fatalf("OpenKeystore: %v", err)
	}
	return k, id
}

func token(t *testing.T, k *wallet.Keystore, id models.Identity) string {
	t.Helper()
	tok, err := k.Authorize(context.Background(), id)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	return tok
}

func do(t *testing.T, router http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetRecord_NotFound(t *testing.T) {
	router := testEnv(t)
	w := do(t, router, http.MethodGet, recordPath, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestInitializeAppendFetch(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	tok := token(t, k, id)

	w := do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: id})
	if w.Code != http.StatusCreated {
		t.Fatalf("init status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, recordPath+"/contributions", tok, AppendContributionRequest{Author: id, Text: "ocean"})
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d, body = %s", w.Code, w.Body.String())
	}
	var c models.Contribution
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.ID == "" || c.Text != "ocean" {
		t.Errorf("contribution = %+v", c)
	}

	w = do(t, router, http.MethodGet, recordPath, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var rec RecordDetail
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Owner != id || len(rec.Contributions) != 1 {
		t.Errorf("record = %+v", rec)
	}
	etag := w.Header().Get("ETag")
	if etag != `"`+rec.Digest+`"` {
		t.Errorf("ETag = %q, digest = %q", etag, rec.Digest)
	}

	req := httptest.NewRequest(http.MethodGet, recordPath, nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", w.Code)
	}
}

func TestInitializeDuplicate(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	tok := token(t, k, id)

	_ = do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: id})
	w := do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: id})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate init = %d, want 409", w.Code)
	}
}

func TestAppendNotInitialized(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	w := do(t, router, http.MethodPost, recordPath+"/contributions", token(t, k, id), AppendContributionRequest{Author: id, Text: "ocean"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAppendEmptyText(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	tok := token(t, k, id)
	_ = do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: id})

	w := do(t, router, http.MethodPost, recordPath+"/contributions", tok, AppendContributionRequest{Author: id})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWritesRequireToken(t *testing.T) {
	router := testEnv(t)
	_, id := signer(t)

	tests := []struct {
		name string
		tok  string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, recordPath, tt.tok, InitializeRecordRequest{Owner: id})
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestSubjectMustMatchBody(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	_, other := signer(t)
	tok := token(t, k, id)

	w := do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: other})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("init as other = %d, want 401", w.Code)
	}

	_ = do(t, router, http.MethodPost, recordPath, tok, InitializeRecordRequest{Owner: id})
	w = do(t, router, http.MethodPost, recordPath+"/contributions", tok, AppendContributionRequest{Author: other, Text: "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("append as other = %d, want 401", w.Code)
	}
}

func TestListRecords(t *testing.T) {
	router := testEnv(t)
	k, id := signer(t)
	_ = do(t, router, http.MethodPost, recordPath, token(t, k, id), InitializeRecordRequest{Owner: id})

	w := do(t, router, http.MethodGet, "/programs/test-program/records", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RecordListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Records) != 1 || resp.Records[0] != testutil.Addr {
		t.Errorf("records = %v", resp.Records)
	}
}

// The client store and the node API must agree on paths, bodies, and
// status codes.
func TestRecordStoreAgainstNode(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", testEnv(t)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	k, id := signer(t)
	store, err := recordstore.NewHTTP(srv.URL, k)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if res := store.FetchRecord(ctx, testutil.Addr); res.Status != recordstore.FetchAbsent {
		t.Fatalf("fetch before init = %s (%v)", res.Status, res.Err)
	}
	if err := store.AppendContribution(ctx, testutil.Addr, "early", id); !errors.Is(err, apperr.ErrNotInitialized) {
		t.Errorf("append before init: %v", err)
	}
	if err := store.InitializeRecord(ctx, testutil.Addr, id); err != nil {
		t.Fatalf("InitializeRecord: %v", err)
	}
	if err := store.InitializeRecord(ctx, testutil.Addr, id); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second init: %v", err)
	}
	if err := store.AppendContribution(ctx, testutil.Addr, "ocean", id); err != nil {
		t.Fatalf("AppendContribution: %v", err)
	}

	res := store.FetchRecord(ctx, testutil.Addr)
	if res.Status != recordstore.FetchFound {
		t.Fatalf("fetch = %s (%v)", res.Status, res.Err)
	}
	if len(res.Record.Contributions) != 1 || res.Record.Contributions[0].Author != id {
		t.Errorf("record = %+v", res.Record)
	}
	if res.Digest == "" {
		t.Error("digest missing")
	}

	// A keystore cannot sign for another identity.
	_, other := signer(t)
	if err := store.AppendContribution(ctx, testutil.Addr, "forged", other); !errors.Is(err, apperr.ErrRemote) {
		t.Errorf("append as other: %v", err)
	}
}
