package handlers

import (
	"net/http"

	"github.com/Dosada05/matchpoint/middleware"
	"github.com/Dosada05/matchpoint/services"
)

type DrawHandler struct {
	drawService services.DrawService
}

func NewDrawHandler(drawService services.DrawService) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// Generate godoc
// @Summary Generate (or regenerate) the tournament bracket
// @Tags draw
// @Accept json
// @Produce json
// @Param tournamentID path int true "tournament id"
// @Success 201 {object} services.DrawResult
// @Router /tournaments/{tournamentID}/draw [post]
func (h *DrawHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	policy := services.UmpireAssignmentPolicy(r.URL.Query().Get("umpire_policy"))

	result, err := h.drawService.GenerateDraw(r.Context(), userID, tournamentID, policy)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DrawHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	bracket, err := h.drawService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, bracket, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
