package tryon

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tryon-web/internal/domain"
	"tryon-web/internal/http-server/handler/tryon/dto"
	"tryon-web/internal/usecase/slot"
	tryon_uc "tryon-web/internal/usecase/tryon"
	"tryon-web/internal/usecase/validation"

	"github.com/go-chi/chi/v5"
	"github.com/wb-go/wbf/zlog"
)

const (
	fileField     = "file"
	pollSeconds   = 2
	healthTimeout = 5 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type TryOnHandler struct {
	usecase    tryOnUsecase
	cookieName string
	logger     *zlog.Zerolog
}

func NewTryOnHandler(usecase tryOnUsecase, cookieName string, logger *zlog.Zerolog) *TryOnHandler {
	if cookieName == "" {
		cookieName = "tryon_session"
	}

	return &TryOnHandler{
		usecase:    usecase,
		cookieName: cookieName,
		logger:     logger,
	}
}

func (h *TryOnHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.renderPage(w, sess.View())
}

func (h *TryOnHandler) State(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.respondJSON(w, http.StatusOK, dto.StateResponse{SessionID: sess.ID(), View: sess.View()})
}

func (h *TryOnHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(w, r)

	kind, ok := domain.ParseSlotKind(chi.URLParam(r, "slot"))
	if !ok {
		h.handleActionError(w, r, sess, ErrUnknownSlot)
		return
	}

	file, err := h.readUpload(w, r)
	if err != nil {
		h.handleActionError(w, r, sess, err)
		return
	}

	if err := sess.SelectFile(ctx, kind, file); err != nil {
		if errors.Is(err, slot.ErrPreviewUnavailable) {
			h.logger.Warn().Err(err).Str("slot", string(kind)).Msg("File kept without preview")
		} else {
			h.handleActionError(w, r, sess, err)
			return
		}
	}

	h.respondAction(w, r, sess)
}

func (h *TryOnHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	kind, ok := domain.ParseSlotKind(chi.URLParam(r, "slot"))
	if !ok {
		h.handleActionError(w, r, sess, ErrUnknownSlot)
		return
	}

	if err := sess.RemoveFile(r.Context(), kind); err != nil {
		h.handleActionError(w, r, sess, err)
		return
	}

	h.respondAction(w, r, sess)
}

func (h *TryOnHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	if err := sess.Submit(r.Context()); err != nil {
		h.handleActionError(w, r, sess, err)
		return
	}

	h.respondAction(w, r, sess)
}

// DismissError clears a finished submission but keeps the selected files.
func (h *TryOnHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	if err := sess.DismissError(r.Context()); err != nil {
		h.handleActionError(w, r, sess, err)
		return
	}

	h.respondAction(w, r, sess)
}

func (h *TryOnHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	sess.Reset(r.Context())
	h.respondAction(w, r, sess)
}

func (h *TryOnHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	ref := domain.PreviewRef(chi.URLParam(r, "id"))

	meta, data, err := h.usecase.Preview(r.Context(), sess, ref)
	if err != nil {
		h.handlePreviewError(w, err, ref)
		return
	}

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := w.Write(data); err != nil {
		h.logger.Error().Err(err).Str("preview", string(ref)).Msg("Failed to write preview")
	}
}

func (h *TryOnHandler) ResultImage(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	data, contentType, err := sess.ResultImage()
	if err != nil {
		h.handleResultError(w, err, sess.ID())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="try-on-result"`)
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := w.Write(data); err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("Failed to write result image")
	}
}

// Download serves the result as an attachment. A result that cannot be
// decoded is only logged and the user is sent back to the page.
func (h *TryOnHandler) Download(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	data, contentType, err := sess.ResultImage()
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("Failed to download result")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	filename := fmt.Sprintf("%s%d.png", domain.ResultFilenamePrefix, time.Now().UnixMilli())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("Failed to write download")
	}
}

func (h *TryOnHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	response := dto.HealthResponse{Status: "ok", Backend: "ok"}
	message, err := h.usecase.BackendHealth(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Try-on service health check failed")
		response.Status = "degraded"
		response.Backend = "unreachable"
		response.BackendMessage = err.Error()
	} else {
		response.BackendMessage = strings.TrimSpace(message)
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *TryOnHandler) session(w http.ResponseWriter, r *http.Request) *tryon_uc.Session {
	var id string
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		id = cookie.Value
	}

	sess, created := h.usecase.Session(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// readUpload streams the "file" part. At most MaxSize+1 bytes are kept; the
// rest is counted and discarded so oversize files reach validation with
// their real size. Only a missing part yields nil; an empty file is returned
// for validation.
func (h *TryOnHandler) readUpload(w http.ResponseWriter, r *http.Request) (*domain.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxFormMemory)

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	limit := h.usecase.Policy().MaxSize
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, h.bodyError(err)
		}

		if part.FormName() != fileField || part.FileName() == "" {
			part.Close()
			continue
		}

		file, err := readFilePart(part, limit)
		part.Close()
		if err != nil {
			return nil, h.bodyError(err)
		}
		return file, nil
	}
}

func readFilePart(part *multipart.Part, limit int64) (*domain.File, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	if size > limit {
		rest, err := io.Copy(io.Discard, part)
		if err != nil {
			return nil, err
		}
		size += rest
	}

	name := part.FileName()
	return &domain.File{
		Name:     name,
		Size:     size,
		MimeType: validation.ResolveMimeType(name, part.Header.Get("Content-Type"), data),
		Data:     data,
	}, nil
}

func (h *TryOnHandler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit %d bytes", ErrRequestTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", ErrInvalidForm, err)
}

func (h *TryOnHandler) respondAction(w http.ResponseWriter, r *http.Request, sess *tryon_uc.Session) {
	if wantsJSON(r) {
		h.respondJSON(w, http.StatusOK, dto.StateResponse{SessionID: sess.ID(), View: sess.View()})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *TryOnHandler) renderPage(w http.ResponseWriter, view tryon_uc.View) {
	policy := h.usecase.Policy()
	data := dto.PageData{
		View:         view,
		AllowedTypes: strings.Join(policy.AllowedTypes, ", "),
		MaxSizeMB:    strconv.FormatFloat(float64(policy.MaxSize)/(1024*1024), 'f', -1, 64),
		PollSeconds:  pollSeconds,
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "index.html", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write page")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *TryOnHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *TryOnHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}
