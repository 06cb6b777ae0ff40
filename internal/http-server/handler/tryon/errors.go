package tryon

import (
	"errors"
	"net/http"

	"tryon-web/internal/domain"
	"tryon-web/internal/http-server/handler/tryon/dto"
	"tryon-web/internal/repository/preview"
	tryon_uc "tryon-web/internal/usecase/tryon"
	"tryon-web/internal/usecase/validation"
)

var (
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrRequestTooLarge = errors.New("request body too large")
	ErrInvalidForm     = errors.New("invalid multipart form")
)

// handleActionError answers a failed form action. Browsers are redirected
// back to the page, which shows slot errors itself; JSON clients get the
// state with a matching status code.
func (h *TryOnHandler) handleActionError(w http.ResponseWriter, r *http.Request, sess *tryon_uc.Session, err error) {
	status, message := h.actionStatus(err)

	if !wantsJSON(r) {
		if status == http.StatusNotFound || status >= http.StatusInternalServerError {
			h.respondError(w, status, message, nil)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.respondJSON(w, status, dto.StateResponse{
		SessionID: sess.ID(),
		View:      sess.View(),
		Error:     message,
	})
}

func (h *TryOnHandler) actionStatus(err error) (int, string) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, vErr.Message
	case errors.Is(err, ErrUnknownSlot), errors.Is(err, tryon_uc.ErrUnknownSlot):
		return http.StatusNotFound, "Unknown upload slot"
	case errors.Is(err, ErrRequestTooLarge):
		h.logger.Warn().Err(err).Msg("Upload body too large")
		return http.StatusRequestEntityTooLarge, "Request too large"
	case errors.Is(err, ErrInvalidForm):
		h.logger.Warn().Err(err).Msg("Failed to parse multipart form")
		return http.StatusBadRequest, "Invalid request format"
	case errors.Is(err, tryon_uc.ErrNotReady):
		return http.StatusBadRequest, "Please upload both images"
	case errors.Is(err, tryon_uc.ErrSubmissionPending):
		return http.StatusConflict, "A try-on is already in progress"
	default:
		h.logger.Error().Err(err).Msg("Action failed")
		return http.StatusInternalServerError, "Something went wrong"
	}
}

func (h *TryOnHandler) handlePreviewError(w http.ResponseWriter, err error, ref domain.PreviewRef) {
	switch {
	case errors.Is(err, tryon_uc.ErrPreviewForbidden), errors.Is(err, preview.ErrPreviewNotFound):
		h.logger.Info().Str("preview", string(ref)).Msg("Preview not found")
		h.respondError(w, http.StatusNotFound, "Preview not found", nil)
	default:
		h.logger.Error().Err(err).Str("preview", string(ref)).Msg("Failed to load preview")
		h.respondError(w, http.StatusInternalServerError, "Failed to load preview", err)
	}
}

func (h *TryOnHandler) handleResultError(w http.ResponseWriter, err error, sessionID string) {
	switch {
	case errors.Is(err, tryon_uc.ErrNoResult):
		h.respondError(w, http.StatusNotFound, "No result available", nil)
	default:
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to decode result image")
		h.respondError(w, http.StatusBadGateway, "Result image is invalid", err)
	}
}
