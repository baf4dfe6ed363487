package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// State reports node heights and stored checkpoints; unreachable nodes are
// left out and turn the status to "degraded".
func (a *API) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := &APIStateResponse{
		Status:        "ok",
		FeePercentage: a.FeePercentage,
		Heights:       map[string]uint64{},
		Checkpoints:   map[string]string{},
	}

	if height, err := a.BGL.GetBlockCount(ctx); err == nil {
		res.Heights["bgl"] = height
	} else {
		a.Logger.Warn("BGL node unreachable", zap.Error(err))
		res.Status = "degraded"
	}
	for id, chain := range a.Chains {
		if height, err := chain.BlockNumber(ctx); err == nil {
			res.Heights[id] = height
		} else {
			a.Logger.Warn("EVM node unreachable", zap.String("chain", id), zap.Error(err))
			res.Status = "degraded"
		}
	}

	for _, name := range a.CheckpointNames {
		value, err := a.Checkpoints.Get(ctx, name, nil)
		if err != nil {
			a.Logger.Error("error reading checkpoint", zap.String("name", name), zap.Error(err))
			responseJSON(w, &APIStateResponse{Status: "error", Message: "store unavailable"}, http.StatusInternalServerError)
			return
		}
		if value != "" {
			res.Checkpoints[name] = value
		}
	}
	responseJSON(w, res, http.StatusOK)
}
