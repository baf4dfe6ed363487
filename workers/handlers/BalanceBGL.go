package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

func (a *API) BalanceBGL(w http.ResponseWriter, r *http.Request) {
	balance, err := a.BGL.GetBalance(r.Context())
	if err != nil {
		a.Logger.Error("error getting BGL balance", zap.Error(err))
		responsePlain(w, []byte("error"), http.StatusInternalServerError)
		return
	}
	responsePlain(w, []byte(balance.String()), http.StatusOK)
}
