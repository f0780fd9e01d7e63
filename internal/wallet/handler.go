package wallet

import "github.com/sudo-init-do/greenvault/internal/ledger"

// Handler serves the account-facing wallet routes. Every route acts on the
// account id taken from the verified token, never on ids in the request.
type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}
