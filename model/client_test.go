package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docfill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"response": "hello from the model"}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", time.Second)
	got, err := c.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", got)
}

func TestOllamaClientConcatsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response": ""}` + "\n" +
			`{"response": "first "}` + "\n" +
			`{"response": "second"}` + "\n"))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", time.Second)
	got, err := c.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "first second", got)
}

func TestOllamaClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", 50*time.Millisecond)
	_, err := c.Generate(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, types.ErrModelTimeout)
}

func TestOllamaClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "test-model", time.Second)
	_, err := c.Generate(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, types.ErrModelUnavailable)

	// Сервер вообще не слушает
	srv.Close()
	_, err = c.Generate(context.Background(), "system", "prompt")
	assert.ErrorIs(t, err, types.ErrModelUnavailable)
}

func TestClipTurnsKeepsNewestSuffix(t *testing.T) {
	turns := []types.Turn{
		{Role: types.RoleUser, Text: "first message"},
		{Role: types.RoleAssistant, Text: "second message"},
		{Role: types.RoleUser, Text: "third message"},
	}

	assert.Nil(t, ClipTurns(turns, 0))
	assert.Equal(t, turns, ClipTurns(turns, 1_000_000))

	clipped := ClipTurns(turns, 4)
	if assert.NotEmpty(t, clipped) {
		assert.Equal(t, "third message", clipped[len(clipped)-1].Text)
	}
}
