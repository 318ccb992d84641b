package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"

	"expensetracker/internal/config"
)

// LineSource yields typed lines, e.g. a terminal prompt.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// TextRecognizer takes each transcript from one typed line. It backs voice
// entry in terminals without audio capture.
type TextRecognizer struct {
	src LineSource
}

func NewTextRecognizer(src LineSource) *TextRecognizer {
	return &TextRecognizer{src: src}
}

func (r *TextRecognizer) Open(context.Context) (Handle, error) {
	return textHandle{r.src}, nil
}

type textHandle struct{ src LineSource }

func (h textHandle) Transcript(ctx context.Context) (string, error) {
	return h.src.ReadLine(ctx)
}

func (textHandle) Close() error { return nil }

// AudioSource opens the audio to transcribe, e.g. a recorded file.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// FileAudio reads audio from path.
func FileAudio(path string) AudioSource {
	return func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// SpeechConfig describes the audio sent to Google Speech-to-Text.
type SpeechConfig struct {
	Language        string
	Encoding        string // LINEAR16, FLAC, OGG_OPUS, ...
	SampleRateHertz int64  // 0 lets the service read it from the header
}

// MaxRequestBytes caps the base64 audio content of a synchronous recognize
// request (about one minute).
const MaxRequestBytes = 10 << 20

// MaxAudioBytes is the largest raw audio whose encoding fits MaxRequestBytes.
const MaxAudioBytes = MaxRequestBytes / 4 * 3

var ErrAudioTooLarge = errors.New("audio exceeds synchronous recognition limit")

// SpeechRecognizer transcribes audio with Google Cloud Speech-to-Text.
type SpeechRecognizer struct {
	svc   *speech.Service
	cfg   SpeechConfig
	audio AudioSource
}

func NewSpeechRecognizer(ctx context.Context, cfg SpeechConfig, audio AudioSource, opts ...option.ClientOption) (*SpeechRecognizer, error) {
	if audio == nil {
		return nil, errors.New("speech recognizer needs an audio source")
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	return &SpeechRecognizer{svc: svc, cfg: cfg, audio: audio}, nil
}

// SpeechOptions returns the client options for the credentials in cfg.
func SpeechOptions(cfg *config.Config) ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(speech.CloudPlatformScope)}
	switch {
	case strings.TrimSpace(cfg.GoogleSpeechCredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleSpeechCredentialsJSON)))
	case cfg.GoogleSpeechCredentialsFile != "":
		data, err := os.ReadFile(cfg.GoogleSpeechCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read speech credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(data))
	default:
		return nil, ErrUnsupported
	}
	return opts, nil
}

func (r *SpeechRecognizer) Open(ctx context.Context) (Handle, error) {
	rc, err := r.audio(ctx)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	return &speechHandle{r: r, audio: rc}, nil
}

type speechHandle struct {
	r     *SpeechRecognizer
	audio io.ReadCloser
	once  sync.Once
	err   error
}

func (h *speechHandle) Transcript(ctx context.Context) (string, error) {
	data, err := io.ReadAll(io.LimitReader(h.audio, MaxAudioBytes+1))
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(data) > MaxAudioBytes {
		return "", ErrAudioTooLarge
	}
	if len(data) == 0 {
		return "", ErrNoSpeech
	}

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			LanguageCode:               h.r.cfg.Language,
			Encoding:                   h.r.cfg.Encoding,
			SampleRateHertz:            h.r.cfg.SampleRateHertz,
			EnableAutomaticPunctuation: true,
			MaxAlternatives:            1,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(data),
		},
	}
	resp, err := h.r.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	var parts []string
	for _, res := range resp.Results {
		if len(res.Alternatives) > 0 && strings.TrimSpace(res.Alternatives[0].Transcript) != "" {
			parts = append(parts, strings.TrimSpace(res.Alternatives[0].Transcript))
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}

func (h *speechHandle) Close() error {
	h.once.Do(func() { h.err = h.audio.Close() })
	return h.err
}
