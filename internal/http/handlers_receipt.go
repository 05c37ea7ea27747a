package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the image itself.
const multipartOverhead = 64 << 10

// handleScanReceipt reads the multipart "file" field and returns the fields
// guessed from it. Nothing is recorded; the client submits a transaction
// afterwards.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, ownerID string) {
	if s.receipts == nil {
		writeProblem(w, http.StatusServiceUnavailable, kindUnavailable, "receipt scanning is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxReceiptBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxReceiptBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, log.OpScan, fmt.Errorf("%w: request exceeds %d bytes", core.ErrReceiptTooLarge, s.maxReceiptBytes))
			return
		}
		writeProblem(w, http.StatusBadRequest, kindBadRequest, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, kindBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the extractor to reject it.
	image, err := io.ReadAll(io.LimitReader(file, s.maxReceiptBytes+1))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, kindBadRequest, "could not read file")
		return
	}

	receipt, err := s.receipts.Extract(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, log.OpScan, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentReceipt).InfoContext(r.Context(), "Receipt scanned",
		"recognised", !receipt.IsEmpty(),
		"filename_len", len(header.Filename))
	NewJSONResponse().Body(newReceiptResponse(receipt)).Write(w)
}
