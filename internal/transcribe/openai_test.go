package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWithoutKey(t *testing.T) {
	tr := NewTranscriber("", "")
	assert.False(t, tr.Enabled())

	text, err := tr.TranscribeURL(context.Background(), "http://unused.invalid/a.ogg")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OggS-fake-audio"))
	}))
	defer srv.Close()

	var uploaded string
	var model openai.AudioModel

	tr := NewTranscriber("", "")
	tr.transcribe = func(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
		data, err := io.ReadAll(params.File)
		require.NoError(t, err)
		uploaded = string(data)
		model = params.Model
		return &openai.Transcription{Text: "  call John tomorrow  "}, nil
	}

	text, err := tr.TranscribeURL(context.Background(), srv.URL+"/voice.ogg")
	require.NoError(t, err)
	assert.Equal(t, "call John tomorrow", text)
	assert.Equal(t, "OggS-fake-audio", uploaded)
	assert.Equal(t, openai.AudioModel(DefaultModel), model)
}

func TestTranscribeURLDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tr := NewTranscriber("", "")
	tr.transcribe = func(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
		t.Fatal("transcription must not run without audio")
		return nil, nil
	}

	_, err := tr.TranscribeURL(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestTranscribeURLRejectsOversizedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OggS-fake-audio"))
	}))
	defer srv.Close()

	tr := NewTranscriber("", "")
	tr.transcribe = func(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
		t.Fatal("oversized audio must not be uploaded")
		return nil, nil
	}

	tr.maxBytes = 8
	_, err := tr.TranscribeURL(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAudioTooLarge))

	tr.maxBytes = int64(len("OggS-fake-audio"))
	tr.transcribe = func(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
		return &openai.Transcription{Text: "ok"}, nil
	}
	text, err := tr.TranscribeURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}
