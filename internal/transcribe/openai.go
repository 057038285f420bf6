package transcribe

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"taskbot/internal/logger"
)

const DefaultModel = "whisper-1"

// MaxAudioBytes is the upload limit of the transcription API.
const MaxAudioBytes = 25 << 20

var ErrAudioTooLarge = errors.New("audio exceeds upload limit")

type transcribeFunc func(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error)

// Transcriber turns a voice note URL into text with the OpenAI audio API.
// Without an API key it is disabled and returns empty text.
type Transcriber struct {
	model      string
	maxBytes   int64
	httpClient *http.Client
	transcribe transcribeFunc
}

func NewTranscriber(apiKey, model string) *Transcriber {
	if model == "" {
		model = DefaultModel
	}

	t := &Transcriber{
		model:      model,
		maxBytes:   MaxAudioBytes,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if apiKey != "" {
		client := openai.NewClient(option.WithAPIKey(apiKey))
		t.transcribe = client.Audio.Transcriptions.New
	}

	return t
}

func (t *Transcriber) Enabled() bool {
	return t.transcribe != nil
}

// TranscribeURL downloads the audio at url and returns its transcript.
func (t *Transcriber) TranscribeURL(ctx context.Context, url string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	file, err := t.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() {
		file.Close()
		os.Remove(file.Name())
	}()

	res, err := t.transcribe(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  file,
	})
	if err != nil {
		return "", errors.Wrap(err, "transcription failed")
	}

	text := strings.TrimSpace(res.Text)
	logger.Debug(ctx, "voice note transcribed", "chars", len(text))
	return text, nil
}

// download stores the audio in a temp file so the multipart upload carries
// an .ogg filename the API can detect the format from.
func (t *Transcriber) download(ctx context.Context, url string) (*os.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	res, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not download audio")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("could not download audio: unexpected status %d", res.StatusCode)
	}

	file, err := os.CreateTemp("", "voice-*.ogg")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	n, err := io.Copy(file, io.LimitReader(res.Body, t.maxBytes+1))
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, errors.Wrap(err, "could not store audio")
	}
	if n > t.maxBytes {
		file.Close()
		os.Remove(file.Name())
		return nil, errors.Wrapf(ErrAudioTooLarge, "more than %d bytes", t.maxBytes)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, errors.WithStack(err)
	}

	return file, nil
}
