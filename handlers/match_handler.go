package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/bracket-engine/middleware"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/Dosada05/bracket-engine/services"
)

type MatchHandler struct {
	matchService       services.MatchService
	disputeService     services.DisputeService
	participantService services.ParticipantService
	notifier           services.DisputeNotifier
	logger             *slog.Logger
}

func NewMatchHandler(
	ms services.MatchService,
	ds services.DisputeService,
	ps services.ParticipantService,
	notifier services.DisputeNotifier,
	logger *slog.Logger,
) *MatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchHandler{
		matchService:       ms,
		disputeService:     ds,
		participantService: ps,
		notifier:           notifier,
		logger:             logger,
	}
}

type submitResultRequest struct {
	Score      *int   `json:"score"`
	Screenshot string `json:"screenshot"`
}

type startMatchRequest struct {
	LobbyCode string     `json:"lobby_code"`
	StartTime *time.Time `json:"start_time"`
}

type verifyResultRequest struct {
	Notes string `json:"notes"`
}

type reportDisputeRequest struct {
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	WinnerID   *int   `json:"winner_id"`
}

var errScoreRequired = errors.New("score is required")

// callerParticipant resolves the authenticated user to their registration in the match's
// tournament. Core operations only ever see participant ids.
func (h *MatchHandler) callerParticipant(ctx context.Context, matchID, userID int) (int, error) {
	m, err := h.matchService.GetMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}
	p, err := h.participantService.ResolveParticipant(ctx, m.TournamentID, userID)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			return 0, services.ErrNotMatchParticipant
		}
		return 0, err
	}
	return p.ID, nil
}

// GetByID godoc
// @Summary Получить матч (игроки матча и администраторы)
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string "Не игрок этого матча"
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
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
		participantID, err := h.callerParticipant(r.Context(), matchID, currentUserID)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		if !m.HasPlayer(participantID) {
			mapServiceErrorToHTTP(w, r, services.ErrNotMatchParticipant)
			return
		}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByTournament godoc
// @Summary Матчи турнира
// @Tags matches
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param round query int false "Round"
// @Param status query string false "Match status"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{tournamentID}/matches [get]
func (h *MatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var filter repositories.ListMatchesFilter
	round, err := queryInt(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	filter.Round = round
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.MatchStatus(statusStr)
		filter.Status = &status
	}

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResult godoc
// @Summary Отправить свой результат матча
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body submitResultRequest true "Score and screenshot URL"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Не игрок этого матча"
// @Failure 409 {object} map[string]string "Матч не принимает результаты"
// @Security BearerAuth
// @Router /matches/{matchID}/result [post]
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Score == nil {
		badRequestResponse(w, r, errScoreRequired)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	participantID, err := h.callerParticipant(r.Context(), matchID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	m, err := h.matchService.SubmitResult(r.Context(), services.SubmitResultInput{
		MatchID:       matchID,
		ParticipantID: participantID,
		Score:         *input.Score,
		Screenshot:    input.Screenshot,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Start godoc
// @Summary Запустить матч (лобби)
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body startMatchRequest false "Lobby"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /matches/{matchID}/start [post]
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input startMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.StartMatch(r.Context(), matchID, services.StartMatchInput{
		LobbyCode: input.LobbyCode,
		StartTime: input.StartTime,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Verify godoc
// @Summary Подтвердить результат матча
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body verifyResultRequest false "Admin notes"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Матч не ждёт подтверждения / ничья"
// @Security BearerAuth
// @Router /matches/{matchID}/verify [post]
func (h *MatchHandler) Verify(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input verifyResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matchService.VerifyResult(r.Context(), matchID, adminID, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportDispute godoc
// @Summary Оспорить матч
// @Tags disputes
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body reportDisputeRequest true "Reason and evidence URLs"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Не игрок этого матча"
// @Failure 409 {object} map[string]string "Матч нельзя оспорить"
// @Security BearerAuth
// @Router /matches/{matchID}/dispute [post]
func (h *MatchHandler) ReportDispute(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input reportDisputeRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	participantID, err := h.callerParticipant(r.Context(), matchID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	m, err := h.disputeService.ReportDispute(r.Context(), services.ReportDisputeInput{
		MatchID:       matchID,
		ParticipantID: participantID,
		Reason:        input.Reason,
		Evidence:      input.Evidence,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.notifyAsync(r.Context(), m, h.notifierReported)
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveDispute godoc
// @Summary Разрешить спор (без winner_id матч отменяется)
// @Tags disputes
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param input body resolveDisputeRequest true "Resolution"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Победитель не из этого матча"
// @Failure 409 {object} map[string]string "Матч не оспорен"
// @Security BearerAuth
// @Router /matches/{matchID}/dispute/resolve [post]
func (h *MatchHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input resolveDisputeRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.disputeService.ResolveDispute(r.Context(), services.ResolveDisputeInput{
		MatchID:    matchID,
		AdminID:    adminID,
		Resolution: input.Resolution,
		WinnerID:   input.WinnerID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.notifyAsync(r.Context(), m, h.notifierResolved)
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) notifierReported(ctx context.Context, m *models.Match) {
	h.notifier.DisputeReported(ctx, m)
}

func (h *MatchHandler) notifierResolved(ctx context.Context, m *models.Match) {
	h.notifier.DisputeResolved(ctx, m)
}

// notifyAsync sends the admin email off the request path; the request context is about to end.
func (h *MatchHandler) notifyAsync(ctx context.Context, m *models.Match, send func(context.Context, *models.Match)) {
	if h.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("dispute notification panicked", slog.Int("match_id", m.ID), slog.String("panic", fmt.Sprint(rec)))
			}
		}()
		send(detached, m)
	}()
}
