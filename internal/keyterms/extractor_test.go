package keyterms

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
)

type fakeLLM struct {
	answer string
	err    error
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.answer}, nil
}

func TestExtract_ParsesJSONArray(t *testing.T) {
	e := NewExtractor(&fakeLLM{answer: `["Kubernetes", "gRPC", "Kubernetes", "x"]`})
	in := media.NewInput([]byte("audio"), "audio/mpeg", "a.mp3")

	terms, err := e.Extract(context.Background(), in, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"Kubernetes", "gRPC"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("expected %v, got %v", want, terms)
	}
}

func TestExtract_FallsBackToLines(t *testing.T) {
	e := NewExtractor(&fakeLLM{answer: "- Kubernetes\n- gRPC\n"})
	in := media.NewInput([]byte("audio"), "audio/mpeg", "a.mp3")

	terms, err := e.Extract(context.Background(), in, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"Kubernetes", "gRPC"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("expected %v, got %v", want, terms)
	}
}

func TestExtract_ClientError(t *testing.T) {
	e := NewExtractor(&fakeLLM{err: errors.New("model down")})
	in := media.NewInput([]byte("audio"), "audio/mpeg", "a.mp3")

	if _, err := e.Extract(context.Background(), in, Options{}); err == nil {
		t.Error("expected the client error to surface")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		opts  Options
		want  []string
	}{
		{
			name:  "dedupe case insensitive keeping first spelling",
			terms: []string{"Seoul", "seoul", "SEOUL", "Busan"},
			want:  []string{"Seoul", "Busan"},
		},
		{
			name:  "drops short terms",
			terms: []string{"a", "ab", "abc"},
			want:  []string{"ab", "abc"},
		},
		{
			name:  "caps list size",
			terms: []string{"one", "two", "three"},
			opts:  Options{MaxTerms: 2},
			want:  []string{"one", "two"},
		},
		{
			name:  "trims whitespace",
			terms: []string{"  padded  "},
			want:  []string{"padded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.terms, tt.opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
