package web

import (
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/dexerrors"
)

// The /api/sim routes drive the in-memory token ledger so that pools can be
// exercised end to end without a chain. They are registered only when the
// server is given a ledger.

type createMintRequest struct {
	Authority solana.PublicKey `json:"authority"`
}

type createAccountRequest struct {
	Mint  solana.PublicKey `json:"mint"`
	Owner solana.PublicKey `json:"owner"`
}

type faucetRequest struct {
	Account solana.PublicKey `json:"account"`
	Amount  uint64           `json:"amount"`
}

// handleCreateMint creates a mint at a fresh address.
func (ws *WebServer) handleCreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	mint := solana.NewWallet().PublicKey()
	if err := ws.ledger.InitializeMint(r.Context(), mint, req.Authority); err != nil {
		ws.writeError(w, r, err)
		return
	}
	created, err := ws.ledger.Mint(r.Context(), mint)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, created)
}

func (ws *WebServer) handleGetMint(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	m, err := ws.ledger.Mint(r.Context(), mint)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, m)
}

// handleCreateAccount opens an empty token account at a fresh address.
func (ws *WebServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	account := solana.NewWallet().PublicKey()
	if err := ws.ledger.InitializeAccount(r.Context(), account, req.Mint, req.Owner); err != nil {
		ws.writeError(w, r, err)
		return
	}
	created, err := ws.ledger.Account(r.Context(), account)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, created)
}

func (ws *WebServer) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	owner, err := pathKey(r, "owner")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	accounts := ws.ledger.AccountsByOwner(owner)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (ws *WebServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	if req.Amount == 0 {
		ws.writeError(w, r, dexerrors.ErrInvalidInputAmount.Wrap("faucet amount must be positive"))
		return
	}
	if err := ws.ledger.Faucet(r.Context(), req.Account, req.Amount); err != nil {
		ws.writeError(w, r, err)
		return
	}
	acc, err := ws.ledger.Account(r.Context(), req.Account)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, acc)
}
