package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/voxkeep/voxkeep/internal/config"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/wav"
)

// consumeTimeout bounds one transcription round trip
const consumeTimeout = 2 * time.Minute

// Sink receives committed recordings for downstream processing. Consume
// must never affect the recording itself; a failed sink run leaves the
// WAV file on disk untouched.
type Sink interface {
	Consume(ctx context.Context, rec models.CompletedRecording)
}

// recognizer abstracts the Speech-to-Text call so tests can fake it
type recognizer interface {
	recognize(ctx context.Context, pcm []byte) (string, error)
}

// GoogleSink transcribes committed recordings with Google Speech-to-Text
// and writes the transcript next to the audio file.
type GoogleSink struct {
	rec    recognizer
	format wav.Format
	log    *zap.Logger
}

// NewGoogleSink builds a sink from the transcription configuration.
// Credentials can come from a service-account file or from a stored
// OAuth token.
func NewGoogleSink(ctx context.Context, cfg config.TranscribeConfig, format wav.Format, log *zap.Logger) (*GoogleSink, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		auth := NewAuth(cfg.ClientID, cfg.ClientSecret, cfg.TokenFile)
		client, err := auth.Client(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithHTTPClient(client))
	default:
		return nil, fmt.Errorf("transcription enabled but no credentials configured")
	}

	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech service: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}

	return &GoogleSink{
		rec:    &googleRecognizer{svc: svc, lang: lang, sampleRate: format.SampleRate},
		format: format,
		log:    log,
	}, nil
}

// Consume transcribes one committed recording. Failures are logged and
// swallowed.
func (s *GoogleSink) Consume(ctx context.Context, rec models.CompletedRecording) {
	ctx, cancel := context.WithTimeout(ctx, consumeTimeout)
	defer cancel()

	data, err := os.ReadFile(rec.FinalLocation)
	if err != nil {
		s.log.Warn("transcription: read recording", zap.String("session", rec.ID), zap.Error(err))
		return
	}
	if len(data) <= wav.HeaderSize {
		s.log.Debug("transcription: empty recording, skipping", zap.String("session", rec.ID))
		return
	}

	// The API wants raw PCM, not the container
	text, err := s.rec.recognize(ctx, data[wav.HeaderSize:])
	if err != nil {
		s.log.Warn("transcription failed", zap.String("session", rec.ID), zap.Error(err))
		return
	}
	if text == "" {
		s.log.Info("transcription: no speech detected", zap.String("session", rec.ID))
		return
	}

	out := transcriptPath(rec.FinalLocation)
	if err := os.WriteFile(out, []byte(text+"\n"), 0644); err != nil {
		s.log.Warn("transcription: write transcript", zap.String("session", rec.ID), zap.Error(err))
		return
	}
	s.log.Info("transcript written", zap.String("session", rec.ID), zap.String("file", out))
}

// transcriptPath maps recording.wav to recording.txt
func transcriptPath(wavPath string) string {
	return strings.TrimSuffix(wavPath, ".wav") + ".txt"
}

type googleRecognizer struct {
	svc        *speech.Service
	lang       string
	sampleRate int
}

func (g *googleRecognizer) recognize(ctx context.Context, pcm []byte) (string, error) {
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(g.sampleRate),
			LanguageCode:    g.lang,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(pcm),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	return strings.Join(parts, " "), nil
}
