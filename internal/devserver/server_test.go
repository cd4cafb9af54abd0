package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loungechat/internal/upload"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(context.Background(), t.TempDir(), 1<<20)
	srv := httptest.NewServer(s.Router("*"))
	t.Cleanup(srv.Close)
	return srv
}

func postFile(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, content)
	mw.Close()

	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestServerUploadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	resp := postFile(t, srv.URL, "pic.png", "fake image data")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var out upload.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(out.URL, "/files/") || !strings.HasSuffix(out.URL, ".png") {
		t.Fatalf("url = %q, want /files/<id>.png", out.URL)
	}
	if out.FileName != "pic.png" {
		t.Fatalf("file_name = %q", out.FileName)
	}

	// The stored blob is retrievable at the returned URL.
	get, err := http.Get(srv.URL + out.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("file fetch status = %d", get.StatusCode)
	}
	b, _ := io.ReadAll(get.Body)
	if string(b) != "fake image data" {
		t.Fatalf("served content = %q", b)
	}
}

func TestServerUploadRequiresFileField(t *testing.T) {
	srv := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no file here")
	mw.Close()

	resp, err := http.Post(srv.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServerFileTraversalBlocked(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/files/..%2F..%2Fetc%2Fpasswd")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("path traversal served a file outside the upload dir")
	}
}
