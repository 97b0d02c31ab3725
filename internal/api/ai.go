package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/xmledit/internal/ai"
)

// Complete handles POST /api/ai.
//
//	@Summary		Run a prompt template through the configured model
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AIRequest	true	"Task keyword and context"
//	@Success		200		{object}	AIResponse
//	@Failure		400		{object}	AIResponse
//	@Failure		503		{object}	AIResponse
//	@Security		BearerAuth
//	@Router			/ai [post]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req AIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, AIResponse{Error: "ai provider not configured"})
		return
	}
	task, known := ai.ParseTask(req.Prompt)
	if !known {
		h.logger.Debug("ai: unknown task, using default", slog.String("task", req.Prompt))
	}
	resp, err := h.gateway.Complete(r.Context(), ai.Request{
		Task:        task,
		Context:     req.Context,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	h.writeAI(w, resp, err)
}

// writeAI renders a gateway result in the success/error envelope.
func (h *Handler) writeAI(w http.ResponseWriter, resp *ai.Response, err error) {
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			// Upstream failures are reported as a bad gateway.
			status = http.StatusBadGateway
			h.logger.Error("ai request failed", slog.String("error", msg))
		}
		writeJSON(w, status, AIResponse{Error: msg})
		return
	}
	usage := resp.Usage
	writeJSON(w, http.StatusOK, AIResponse{
		Success:  true,
		Response: resp.Text,
		Model:    resp.Model,
		Usage:    &usage,
	})
}

// AIInfo handles GET /api/ai/info.
//
//	@Summary		Describe the configured AI provider
//	@Tags			ai
//	@Produce		json
//	@Success		200	{object}	ai.Info
//	@Security		BearerAuth
//	@Router			/ai/info [get]
func (h *Handler) AIInfo(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		writeJSON(w, http.StatusOK, ai.Info{Provider: "none"})
		return
	}
	writeJSON(w, http.StatusOK, h.gateway.Info())
}
