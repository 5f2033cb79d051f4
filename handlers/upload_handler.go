package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/services"
	"github.com/Dosada05/bracket-engine/storage"
)

const maxUploadSize = 10 << 20 // 10MB

var allowedUploadTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// UploadHandler stores match screenshots and dispute evidence. The returned URL is what players
// put into SubmitResult.screenshot or ReportDispute.evidence.
type UploadHandler struct {
	uploader           storage.FileUploader
	matchService       services.MatchService
	participantService services.ParticipantService
	logger             *slog.Logger
}

func NewUploadHandler(uploader storage.FileUploader, ms services.MatchService, ps services.ParticipantService, logger *slog.Logger) *UploadHandler {
	if uploader == nil {
		uploader = storage.NewDisabledUploader()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		uploader:           uploader,
		matchService:       ms,
		participantService: ps,
		logger:             logger,
	}
}

// UploadMatchFile godoc
// @Summary Загрузить скриншот или доказательство к матчу
// @Tags matches
// @Accept multipart/form-data
// @Produce json
// @Param matchID path int true "Match ID"
// @Param file formData file true "Image or PDF, up to 10MB"
// @Success 201 {object} storage.UploadResult
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string "Не игрок этого матча"
// @Failure 503 {object} map[string]string "Хранилище не настроено"
// @Security BearerAuth
// @Router /matches/{matchID}/files [post]
func (h *UploadHandler) UploadMatchFile(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	m, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !role.CanAdminister() {
		p, err := h.participantService.ResolveParticipant(r.Context(), m.TournamentID, userID)
		if err != nil && !errors.Is(err, services.ErrParticipantNotFound) {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		if p == nil || !m.HasPlayer(p.ID) {
			mapServiceErrorToHTTP(w, r, services.ErrNotMatchParticipant)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("form field 'file' is required"))
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		badRequestResponse(w, r, fmt.Errorf("failed to read file: %w", err))
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	if !allowedUploadTypes[contentType] {
		badRequestResponse(w, r, fmt.Errorf("unsupported file type %q", contentType))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	key := storage.MatchFileKey(m.TournamentID, m.ID, header.Filename)
	result, err := h.uploader.Upload(r.Context(), key, contentType, file)
	if err != nil {
		if errors.Is(err, storage.ErrUploadsDisabled) {
			errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
		serverErrorResponse(w, r, err)
		return
	}

	h.logger.Info("match file uploaded",
		slog.Int("match_id", m.ID),
		slog.Int("user_id", userID),
		slog.String("key", result.Key))
	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
