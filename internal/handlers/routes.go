package handlers

import "net/http"

// Register mounts the authenticated API on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /contracts/{id}/installments/validate", h.ValidateInstallments)
	mux.HandleFunc("POST /contracts/{id}/installments", h.SubmitInstallments)
	mux.HandleFunc("POST /contracts/{id}/installments/retry", h.RetryInstallments)
	mux.HandleFunc("POST /contracts/{id}/installments/import", h.ImportSchedule)
	mux.HandleFunc("GET /contracts/{id}/submissions", h.ListSubmissions)
	mux.HandleFunc("GET /contracts/{id}/ledger", h.ContractLedger)
	mux.HandleFunc("POST /contracts/{id}/ledger/export", h.ExportLedger)
	mux.HandleFunc("GET /debts/{id}/ledger", h.DebtLedger)
	mux.HandleFunc("POST /uploads", h.Upload)
}
