package uploader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"lister/internal/config"
	"lister/internal/logging"
	"lister/internal/testsupport"
	"lister/internal/uploader"
)

func newBase(t *testing.T, handler http.Handler) uploader.Uploader {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Platforms["base"] = config.Platform{
		Enabled:    true,
		APIBaseURL: srv.URL,
		APIToken:   "platform-token",
	}
	up, err := uploader.NewBase(cfg, cfg.Accounts[0], logging.NewNop())
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return up
}

func TestBaseUploadItemSuccess(t *testing.T) {
	var gotAuth, gotTitle, gotIdentifier string
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/items/add" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTitle = r.PostForm.Get("title")
		gotIdentifier = r.PostForm.Get("identifier")
		w.Write([]byte(`{"item":{"item_id":4242,"identifier":"SKU-1","title":"Widget"}}`))
	}))

	result, err := up.UploadItem(context.Background(), &uploader.Request{
		ASIN: "B0WIDGET01", SKU: "SKU-1", Title: "Widget", SellingPrice: 1980,
	})
	if err != nil {
		t.Fatalf("UploadItem: %v", err)
	}
	if result.PlatformItemID != "4242" {
		t.Fatalf("expected platform item id 4242, got %q", result.PlatformItemID)
	}
	if gotAuth != "Bearer platform-token" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotTitle != "Widget" || gotIdentifier != "SKU-1" {
		t.Fatalf("form not forwarded: title=%q identifier=%q", gotTitle, gotIdentifier)
	}
}

func TestBaseUploadItemServerErrorIsRetryable(t *testing.T) {
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}))

	_, err := up.UploadItem(context.Background(), &uploader.Request{
		ASIN: "B0X", SKU: "SKU-X", Title: "X", SellingPrice: 100,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !uploader.Retryable(err) {
		t.Fatalf("500 must be retryable, got %v", err)
	}
}

func TestBaseUploadItemBadRequestIsPermanent(t *testing.T) {
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_request","error_description":"price out of range"}`, http.StatusBadRequest)
	}))

	_, err := up.UploadItem(context.Background(), &uploader.Request{
		ASIN: "B0X", SKU: "SKU-X", Title: "X", SellingPrice: 100,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if uploader.Retryable(err) {
		t.Fatalf("400 must not be retryable, got %v", err)
	}
}

func TestBaseValidateItem(t *testing.T) {
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation must not hit the network")
	}))

	cases := []struct {
		name string
		req  uploader.Request
	}{
		{"missing title", uploader.Request{SKU: "S", SellingPrice: 100}},
		{"missing sku", uploader.Request{Title: "T", SellingPrice: 100}},
		{"zero price", uploader.Request{Title: "T", SKU: "S"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := up.ValidateItem(&tc.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if uploader.Retryable(err) {
				t.Fatalf("validation errors must not be retryable: %v", err)
			}
		})
	}

	if err := up.ValidateItem(&uploader.Request{Title: "T", SKU: "S", SellingPrice: 1}); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestBaseUploadImagesReportsPartialFailure(t *testing.T) {
	calls := 0
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/items/add_image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		calls++
		if calls == 2 {
			http.Error(w, `{"error":"bad image"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"item":{"item_id":4242}}`))
	}))

	result, err := up.UploadImages(context.Background(), "4242", []string{
		"https://img.example/1.jpg",
		"https://img.example/2.jpg",
		"https://img.example/3.jpg",
	})
	if err != nil {
		t.Fatalf("partial failure must not return an error: %v", err)
	}
	if result.Status != uploader.StatusPartial {
		t.Fatalf("expected partial status, got %q", result.Status)
	}
	if result.UploadedCount != 2 {
		t.Fatalf("expected 2 uploaded, got %d", result.UploadedCount)
	}
}

func TestBaseCheckDuplicateOnlyCountsVisibleMatches(t *testing.T) {
	up := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/items/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("q") {
		case "SKU-LISTED":
			w.Write([]byte(`{"items":[{"item_id":1,"identifier":"SKU-LISTED","visible":1}]}`))
		case "SKU-HIDDEN":
			w.Write([]byte(`{"items":[{"item_id":2,"identifier":"SKU-HIDDEN","visible":0}]}`))
		default:
			w.Write([]byte(`{"items":[]}`))
		}
	}))

	ctx := context.Background()
	dup, err := up.CheckDuplicate(ctx, "B0A", "SKU-LISTED")
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if !dup {
		t.Fatal("expected visible identifier match to count as duplicate")
	}

	dup, err = up.CheckDuplicate(ctx, "B0B", "SKU-HIDDEN")
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if dup {
		t.Fatal("hidden item must not count as a confirmed listing")
	}

	dup, err = up.CheckDuplicate(ctx, "B0C", "SKU-NEW")
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if dup {
		t.Fatal("unknown sku must not be a duplicate")
	}
}
