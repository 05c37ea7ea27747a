package http

import (
	"errors"
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), ownerID, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/accounts/"+account.ID).
		Body(newAccountResponse(account)).
		Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, ownerID string) {
	accounts, err := s.ledger.ListAccounts(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountResponse(a))
	}
	NewJSONResponse().Body(map[string]any{"accounts": out}).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, ownerID string) {
	account, err := s.ledger.GetAccount(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newAccountResponse(account)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	list, err := s.ledger.ListTransactions(r.Context(), ownerID, r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, newTransactionResponse(t))
	}
	NewJSONResponse().Body(map[string]any{"transactions": out}).Write(w)
}

// writeBadRequest reports an undecodable body. Oversized bodies get 413.
func writeBadRequest(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeProblem(w, http.StatusRequestEntityTooLarge, kindBadRequest, "request body too large")
		return
	}
	writeProblem(w, http.StatusBadRequest, kindBadRequest, err.Error())
}
