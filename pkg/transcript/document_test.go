package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFindDocumentURL_PrefersLabeledDocument(t *testing.T) {
	html := `<html><body>
		<a href="/notes.pdf">show notes</a>
		<a href="/full-transcript.pdf">Read the transcript</a>
		<a href="/transcript-page">transcript online</a>
	</body></html>`

	got, err := FindDocumentURL(html)
	if err != nil {
		t.Fatalf("FindDocumentURL: %v", err)
	}
	if got != "/full-transcript.pdf" {
		t.Errorf("url = %q, want /full-transcript.pdf", got)
	}
}

func TestFindDocumentURL_DocumentHrefAlone(t *testing.T) {
	html := `<a href="https://cdn.example/ep12.txt?dl=1">download</a>`

	got, err := FindDocumentURL(html)
	if err != nil {
		t.Fatalf("FindDocumentURL: %v", err)
	}
	if got != "https://cdn.example/ep12.txt?dl=1" {
		t.Errorf("url = %q", got)
	}
}

func TestFindDocumentURL_NoCandidate(t *testing.T) {
	if _, err := FindDocumentURL(`<a href="/about">about</a>`); !errors.Is(err, ErrNoDocumentLink) {
		t.Errorf("err = %v, want ErrNoDocumentLink", err)
	}
}

func TestFromDocument_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("spoken line one\nspoken line two"))
	}))
	defer srv.Close()

	f := NewDocumentFetcher()
	got, err := f.FromDocument(context.Background(), srv.URL+"/ep.txt")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if got != "spoken line one\nspoken line two" {
		t.Errorf("text = %q", got)
	}
}

func TestFromDocument_UnsupportedType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50})
	}))
	defer srv.Close()

	f := NewDocumentFetcher()
	if _, err := f.FromDocument(context.Background(), srv.URL+"/poster"); !errors.Is(err, ErrUnsupportedTranscript) {
		t.Errorf("err = %v, want ErrUnsupportedTranscript", err)
	}
}

func TestFromDocument_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewDocumentFetcher()
	if _, err := f.FromDocument(context.Background(), srv.URL+"/gone.txt"); err == nil {
		t.Error("expected error for 404 response")
	}
}
