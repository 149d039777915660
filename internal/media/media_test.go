package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
)

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		fileName string
		data     []byte
		want     string
	}{
		{"declared wins", "audio/mpeg", "x.wav", nil, "audio/mpeg"},
		{"declared parameters stripped", "Audio/MPEG; charset=binary", "x", nil, "audio/mpeg"},
		{"octet-stream falls through to extension", "application/octet-stream", "talk.mp3", nil, "audio/mpeg"},
		{"extension map", "", "clip.webm", nil, "video/webm"},
		{"sniffed from magic bytes", "", "nameless", []byte("ID3\x03rest of an mp3 file here"), "audio/mpeg"},
		{"unknown everything", "", "mystery.bin", nil, "application/octet-stream"},
		{"octet-stream kept when nothing better", "application/octet-stream", "mystery.bin", nil, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.declared, tt.fileName, tt.data); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsAudioVideo(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"audio/mpeg", true},
		{"video/mp4", true},
		{"AUDIO/WAV; rate=44100", true},
		{"application/pdf", false},
		{"text/plain", false},
	}

	for _, tt := range tests {
		if got := IsAudioVideo(tt.mime); got != tt.want {
			t.Errorf("IsAudioVideo(%q): expected %v, got %v", tt.mime, tt.want, got)
		}
	}
}

func TestInput_ReleaseOnce(t *testing.T) {
	count := 0
	in := NewInput([]byte("payload"), "audio/mpeg", "a.mp3").WithReleaseHook(func() { count++ })

	in.Release()
	in.Release()
	in.Release()

	if count != 1 {
		t.Errorf("expected release hook fired once, got %d", count)
	}
	if in.Data != nil {
		t.Error("expected buffer dropped after release")
	}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	f := NewFetcher(1024)
	in, err := f.Fetch(context.Background(), srv.URL+"/media/recording.wav")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(in.Data) != "RIFFdata" {
		t.Errorf("unexpected payload %q", in.Data)
	}
	if in.MIME != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", in.MIME)
	}
	if in.Name != "recording.wav" {
		t.Errorf("expected name from URL path, got %q", in.Name)
	}
}

func TestFetch_OversizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := NewFetcher(50)
	_, err := f.Fetch(context.Background(), srv.URL+"/big.mp3")

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected an AppError, got %v", err)
	}
	if appErr.Code != apperrors.ErrCodePayloadTooLarge {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodePayloadTooLarge, appErr.Code)
	}
}

func TestFetch_RejectsBadURL(t *testing.T) {
	f := NewFetcher(1024)
	for _, raw := range []string{"ftp://example.com/x.mp3", "not a url", ""} {
		if _, err := f.Fetch(context.Background(), raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(1024)
	if _, err := f.Fetch(context.Background(), srv.URL+"/gone.mp3"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestSidecarNormalizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart upload: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("normalized"))
	}))
	defer srv.Close()

	n := NewSidecarNormalizer(SidecarNormalizerConfig{BaseURL: srv.URL})
	in := NewInput([]byte("raw"), "audio/ogg", "a.ogg").WithDuration(12)

	out, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(out.Data) != "normalized" {
		t.Errorf("unexpected payload %q", out.Data)
	}
	if out.MIME != "audio/wav" {
		t.Errorf("expected normalized MIME, got %q", out.MIME)
	}
	if out.Duration != 12 {
		t.Errorf("expected duration carried over, got %v", out.Duration)
	}
	if in.Data == nil {
		t.Error("normalizer must not release the original buffer")
	}
}
