package handlers

import (
	"net/http"

	"gobglrelayer/types"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Conversions lists conversions by status, optionally narrowed with the
// chain and type query parameters
func (a *API) Conversions(w http.ResponseWriter, r *http.Request) {
	q := types.ConversionQuery{
		Status: types.ConversionStatus(chi.URLParam(r, "status")),
		Chain:  r.URL.Query().Get("chain"),
		Type:   types.Asset(r.URL.Query().Get("type")),
	}
	if !q.Status.Valid() {
		responseJSON(w, &APIResponse{Status: "error", Message: "unknown status", Field: "status"}, http.StatusBadRequest)
		return
	}
	if q.Type != "" && q.Type != types.AssetBGL && q.Type != types.AssetWBGL {
		responseJSON(w, &APIResponse{Status: "error", Message: "unknown type", Field: "type"}, http.StatusBadRequest)
		return
	}

	conversions, err := a.Records.FindConversions(r.Context(), q)
	if err != nil {
		a.Logger.Error("error finding conversions", zap.String("status", string(q.Status)), zap.Error(err))
		responseJSON(w, &APIResponse{Status: "error"}, http.StatusInternalServerError)
		return
	}
	if conversions == nil {
		conversions = []*types.Conversion{}
	}
	responseJSON(w, &APIConversionsResponse{Status: "ok", Count: len(conversions), Conversions: conversions}, http.StatusOK)
}

// Conversion returns one conversion by id
func (a *API) Conversion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := a.Records.GetConversion(r.Context(), id)
	if err != nil {
		a.Logger.Error("error loading conversion", zap.String("conversion", id), zap.Error(err))
		responseJSON(w, &APIResponse{Status: "error"}, http.StatusInternalServerError)
		return
	}
	if c == nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "conversion not found", Field: "id"}, http.StatusNotFound)
		return
	}
	responseJSON(w, &APIConversionResponse{Status: "ok", Conversion: c}, http.StatusOK)
}
