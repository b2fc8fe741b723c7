// Package voice converts recorded speech to text with Cloud Speech-to-Text.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const (
	DefaultEncoding     = "LINEAR16"
	DefaultSampleRate   = 16000
	DefaultLanguageCode = "en-US"

	// MockTranscript is returned when no speech client could be created.
	MockTranscript = "Check my balance"
)

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

type Request struct {
	Audio        string `json:"audio" validate:"required,base64"`
	Encoding     string `json:"encoding"`
	SampleRate   int    `json:"sample_rate" validate:"omitempty,min=8000,max=48000"`
	LanguageCode string `json:"language_code"`
}

type Result struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
	Duration   float64 `json:"duration_seconds"`
}

type Transcriber struct {
	client       recognizer
	languageCode string
	logger       *zap.Logger
}

// NewTranscriber connects to Speech-to-Text with the ambient Google
// credentials. Without credentials it falls back to a fixed mock transcript.
// languageCode applies to requests that do not name one.
func NewTranscriber(ctx context.Context, languageCode string, logger *zap.Logger) *Transcriber {
	logger = logger.Named("voice")
	client, err := speech.NewClient(ctx)
	if err != nil {
		logger.Warn("speech client unavailable, using mock transcription", zap.Error(err))
		return &Transcriber{languageCode: languageCode, logger: logger}
	}
	return &Transcriber{client: client, languageCode: languageCode, logger: logger}
}

func (t *Transcriber) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if req.Encoding == "" {
		req.Encoding = DefaultEncoding
	}
	if req.SampleRate == 0 {
		req.SampleRate = DefaultSampleRate
	}
	if req.LanguageCode == "" {
		req.LanguageCode = t.languageCode
	}
	if req.LanguageCode == "" {
		req.LanguageCode = DefaultLanguageCode
	}

	audioBytes, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(audioBytes) == 0 {
		return nil, errors.New("audio data is empty")
	}

	startTime := time.Now()
	if t.client == nil {
		return &Result{Transcript: MockTranscript, Confidence: 0.95, Duration: time.Since(startTime).Seconds()}, nil
	}

	encoding, err := parseEncoding(req.Encoding)
	if err != nil {
		return nil, err
	}

	speechReq := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(req.SampleRate),
			LanguageCode:               req.LanguageCode,
			EnableAutomaticPunctuation: true,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audioBytes,
			},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := t.client.Recognize(timeoutCtx, speechReq)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, errors.New("no speech detected")
	}

	var (
		transcript      strings.Builder
		totalConfidence float32
		count           int
	)
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alternative := result.Alternatives[0]
		transcript.WriteString(alternative.Transcript)
		transcript.WriteString(" ")
		totalConfidence += alternative.Confidence
		count++
	}
	if count == 0 {
		return nil, errors.New("no alternatives in results")
	}

	res := &Result{
		Transcript: strings.TrimSpace(transcript.String()),
		Confidence: totalConfidence / float32(count),
		Duration:   time.Since(startTime).Seconds(),
	}
	t.logger.Debug("audio transcribed", zap.Float32("confidence", res.Confidence), zap.Float64("duration", res.Duration))
	return res, nil
}

func parseEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

func (t *Transcriber) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
