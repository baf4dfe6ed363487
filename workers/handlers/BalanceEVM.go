package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// BalanceEVM reports the custodial WBGL balance on the chain named in the path
func (a *API) BalanceEVM(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chain")
	chain, ok := a.Chains[id]
	if !ok {
		responsePlain(w, []byte("unknown chain"), http.StatusNotFound)
		return
	}

	balance, err := chain.GetWBGLBalance(r.Context())
	if err != nil {
		a.Logger.Error("error getting WBGL balance", zap.String("chain", id), zap.Error(err))
		responsePlain(w, []byte("error"), http.StatusInternalServerError)
		return
	}
	responsePlain(w, []byte(balance.String()), http.StatusOK)
}
