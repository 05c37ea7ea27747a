package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	t, err := s.ledger.CreateTransaction(r.Context(), ownerID, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+t.ID).
		Body(newTransactionResponse(t)).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	t, err := s.ledger.GetTransaction(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponse(t)).Write(w)
}

// handleUpdateTransaction replaces every editable field, as PUT implies.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	t, err := s.ledger.UpdateTransaction(r.Context(), ownerID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newTransactionResponse(t)).Write(w)
}
