package gtranslate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSuccess(t *testing.T) {
	mp3 := []byte{0x49, 0x44, 0x33, 0xFF, 0xFB, 0x90}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(mp3)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewHTTPGetter(time.Second, ""))
	got, err := c.Fetch(context.Background(), Request{Text: "hello", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(mp3) {
		t.Errorf("got %x, want %x", got, mp3)
	}
}

func TestFetchQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"ie":      "UTF-8",
			"q":       "Wie geht es Ihnen",
			"tl":      "de",
			"total":   "4",
			"idx":     "0",
			"textlen": "17",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		if !strings.Contains(r.URL.RawQuery, "q=Wie+geht+es+Ihnen") {
			t.Errorf("raw query = %q, want form-encoded text", r.URL.RawQuery)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
		}
		w.Write([]byte{0xFF})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewHTTPGetter(0, ""))
	if _, err := c.Fetch(context.Background(), Request{Text: "Wie geht es Ihnen", Language: "de"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestURLOrderAndEscaping(t *testing.T) {
	c := NewClient("https://example.test/tts", nil)
	got := c.URL(Request{Text: "a&b ü", Language: "en"})
	want := "https://example.test/tts?ie=UTF-8&q=a%26b+%C3%BC&tl=en&total=2&idx=0&textlen=5"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestURLEndpointWithQuery(t *testing.T) {
	c := NewClient("https://example.test/tts?client=tw-ob", nil)
	got := c.URL(Request{Text: "Hi", Language: "en"})
	if !strings.HasPrefix(got, "https://example.test/tts?client=tw-ob&ie=UTF-8&") {
		t.Errorf("URL = %q, want existing query preserved", got)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewHTTPGetter(time.Second, ""))
	_, err := c.Fetch(context.Background(), Request{Text: "hello", Language: "en"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %q, want to contain status 503", err.Error())
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewHTTPGetter(time.Second, ""))
	_, err := c.Fetch(context.Background(), Request{Text: "hello", Language: "en"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewHTTPGetter(50*time.Millisecond, ""))
	_, err := c.Fetch(context.Background(), Request{Text: "hello", Language: "en"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, NewHTTPGetter(time.Second, ""))
	_, err := c.Fetch(context.Background(), Request{Text: "hello", Language: "en"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
}

type recordingGetter struct {
	urls []string
}

func (g *recordingGetter) Get(_ context.Context, url string) ([]byte, error) {
	g.urls = append(g.urls, url)
	return []byte{0xFF, 0xFB}, nil
}

func TestFetchUsesGetter(t *testing.T) {
	g := &recordingGetter{}
	c := NewClient("https://example.test/tts", g)
	if _, err := c.Fetch(context.Background(), Request{Text: "Hi", Language: "fr"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.urls) != 1 {
		t.Fatalf("getter called %d times, want 1", len(g.urls))
	}
	if !strings.Contains(g.urls[0], "tl=fr") {
		t.Errorf("url = %q, want tl=fr", g.urls[0])
	}
}

func TestFetchValidation(t *testing.T) {
	g := &recordingGetter{}
	c := NewClient("https://example.test/tts", g)
	if _, err := c.Fetch(context.Background(), Request{Text: "", Language: "en"}); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := c.Fetch(context.Background(), Request{Text: "hi"}); err == nil {
		t.Error("expected error for empty language")
	}
	if len(g.urls) != 0 {
		t.Errorf("getter called %d times for invalid requests", len(g.urls))
	}
}
