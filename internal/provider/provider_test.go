package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatamuse_PartsOfSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/words", r.URL.Path)
		assert.Equal(t, "quick", r.URL.Query().Get("sp"))
		assert.Equal(t, "p", r.URL.Query().Get("md"))
		fmt.Fprint(w, `[{"word":"quick","score":100,"tags":["adj","n"]},{"word":"quack","tags":["v"]}]`)
	}))
	defer srv.Close()

	d := NewDatamuse(WithBaseURL(srv.URL + "/"))
	tags, err := d.PartsOfSpeech(context.Background(), "quick")
	require.NoError(t, err)
	assert.Equal(t, []string{"adj", "n"}, tags)
}

func TestDatamuse_Candidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fox", r.URL.Query().Get("rel_syn"))
		assert.Equal(t, "5", r.URL.Query().Get("max"))
		fmt.Fprint(w, `[{"word":"wolf","score":10,"tags":["syn","n"]},{"word":"","tags":["n"]},{"word":"trickster","tags":["syn","n"]}]`)
	}))
	defer srv.Close()

	d := NewDatamuse(WithBaseURL(srv.URL), WithMaxResults(5))
	cands, err := d.Candidates(context.Background(), "fox")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Word: "wolf", Tags: []string{"syn", "n"}},
		{Word: "trickster", Tags: []string{"syn", "n"}},
	}, cands)
}

func TestDatamuse_EmptyAndMalformed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty array", http.StatusOK, `[]`},
		{"malformed json", http.StatusOK, `{not json`},
		{"not found", http.StatusNotFound, `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			d := NewDatamuse(WithBaseURL(srv.URL))
			tags, err := d.PartsOfSpeech(context.Background(), "word")
			require.NoError(t, err)
			assert.Empty(t, tags)

			cands, err := d.Candidates(context.Background(), "word")
			require.NoError(t, err)
			assert.Empty(t, cands)
		})
	}
}

func TestDatamuse_TransientStatuses(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			d := NewDatamuse(WithBaseURL(srv.URL))
			_, err := d.Candidates(context.Background(), "fox")
			require.Error(t, err)
			assert.True(t, IsTransient(err))

			var te *TransientError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, status, te.Status)
			assert.Equal(t, "candidates", te.Op)
		})
	}
}

func TestDatamuse_TransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := NewDatamuse(WithBaseURL(url))
	_, err := d.PartsOfSpeech(context.Background(), "fox")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestDatamuse_CancelledContextIsNotTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDatamuse(WithBaseURL(srv.URL))
	_, err := d.PartsOfSpeech(ctx, "fox")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.ErrorIs(t, err, context.Canceled)
}

const testLexicon = `
words:
  Quick:
    tags: [adj]
    synonyms:
      - word: speedy
        tags: [adj]
  fox:
    tags: [n]
    synonyms:
      - word: wolf
        tags: [n]
`

func TestLexicon_Lookup(t *testing.T) {
	lex, err := ParseLexicon([]byte(testLexicon))
	require.NoError(t, err)

	ctx := context.Background()
	tags, err := lex.PartsOfSpeech(ctx, "QUICK")
	require.NoError(t, err)
	assert.Equal(t, []string{"adj"}, tags)

	cands, err := lex.Candidates(ctx, "Fox")
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{Word: "wolf", Tags: []string{"n"}}}, cands)

	tags, err = lex.PartsOfSpeech(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLexicon_RejectsUnknownFields(t *testing.T) {
	_, err := ParseLexicon([]byte("wordz:\n  a: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse lexicon YAML")
}

func TestLexicon_RejectsEmptySynonym(t *testing.T) {
	_, err := ParseLexicon([]byte("words:\n  fox:\n    synonyms:\n      - tags: [n]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fox.synonyms[0]")
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testLexicon), 0644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Len(t, lex.Words, 2)

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// Compile-time interface checks.
var (
	_ Provider = (*Datamuse)(nil)
	_ Provider = (*Lexicon)(nil)
)
