package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/services"
)

type MatchHandler struct {
	matchFlow    services.MatchFlowService
	scoreService services.ScoreService
}

func NewMatchHandler(matchFlow services.MatchFlowService, scoreService services.ScoreService) *MatchHandler {
	return &MatchHandler{matchFlow: matchFlow, scoreService: scoreService}
}

func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchFlow.StartMatch)
}

func (h *MatchHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchFlow.PauseMatch)
}

func (h *MatchHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchFlow.ResumeMatch)
}

// Finish closes the match: the winner is determined from the recorded
// score (or walkover state), rolled up into the parent team match when
// there is one, and propagated downstream.
func (h *MatchHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchFlow.ProcessMatchFinish)
}

func (h *MatchHandler) RevertFinish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchFlow.RevertMatchFinish)
}

// AddPoint godoc
// @Summary Record one scoring event
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "match id"
// @Success 200 {object} services.PointResult
// @Router /matches/{matchID}/points [post]
func (h *MatchHandler) AddPoint(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var body struct {
		Type            models.PointType `json:"point_type"`
		ClientUUID      string           `json:"client_uuid"`
		ExpectedVersion int              `json:"expected_version"`
	}
	if err := readJSON(w, r, &body); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	result, err := h.scoreService.AddPoint(r.Context(), services.AddPointInput{
		MatchID:         matchID,
		Type:            body.Type,
		ClientUUID:      body.ClientUUID,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) UndoPoint(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var body struct {
		ExpectedVersion int `json:"expected_version"`
	}
	if err := readJSON(w, r, &body); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	result, err := h.scoreService.UndoPoint(r.Context(), matchID, body.ExpectedVersion)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, matchID int) error) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := op(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
