package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/services"
	"github.com/treasurehunt/backend/internal/voice"
)

type Transcriber interface {
	Transcribe(ctx context.Context, req voice.Request) (*voice.Result, error)
}

type CommandExecutor interface {
	Execute(ctx context.Context, userID, transcript string) services.CommandResult
}

type VoiceHandler struct {
	transcriber Transcriber
	commands    CommandExecutor
	validator   *services.ValidationHelper
	logger      *zap.Logger
}

func NewVoiceHandler(transcriber Transcriber, commands CommandExecutor, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		transcriber: transcriber,
		commands:    commands,
		validator:   services.NewValidationHelper(),
		logger:      logger.Named("voice"),
	}
}

// Transcribe converts recorded speech to text
// @Summary Transcribe audio
// @Tags Voice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body voice.Request true "Base64 audio"
// @Success 200 {object} object{success=bool,transcript=string,confidence=number,duration_seconds=number}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /voice/transcribe [post]
func (h *VoiceHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	var req voice.Request
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), req)
	if err != nil {
		h.logger.Warn("transcription failed", zap.Error(err))
		services.SendErrorResponse(w, "Failed to transcribe audio", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"transcript":       result.Transcript,
		"confidence":       result.Confidence,
		"duration_seconds": result.Duration,
	})
}

// Command runs a spoken command for the signed-in player
// @Summary Run voice command
// @Description Accepts either a transcript or base64 audio, which is transcribed first. The response carries the text to speak back.
// @Tags Voice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{transcript=string,audio=string,encoding=string,sample_rate=int} true "Command"
// @Success 200 {object} object{transcript=string,result=services.CommandResult}
// @Failure 400 {object} services.ErrorResponse
// @Router /voice/command [post]
func (h *VoiceHandler) Command(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Transcript   string `json:"transcript" validate:"required_without=Audio,max=500"`
		Audio        string `json:"audio" validate:"omitempty,base64"`
		Encoding     string `json:"encoding"`
		SampleRate   int    `json:"sample_rate" validate:"omitempty,min=8000,max=48000"`
		LanguageCode string `json:"language_code"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	transcript := req.Transcript
	if transcript == "" {
		result, err := h.transcriber.Transcribe(r.Context(), voice.Request{
			Audio:        req.Audio,
			Encoding:     req.Encoding,
			SampleRate:   req.SampleRate,
			LanguageCode: req.LanguageCode,
		})
		if err != nil {
			h.logger.Warn("transcription failed", zap.Error(err))
			services.SendErrorResponse(w, "Failed to transcribe audio", http.StatusInternalServerError, nil)
			return
		}
		transcript = result.Transcript
	}

	result := h.commands.Execute(r.Context(), userID, transcript)
	writeJSON(w, http.StatusOK, map[string]any{
		"transcript": transcript,
		"result":     result,
	})
}
