package workflow

import (
	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
)

// transitions is the legal state graph. Draft is initial; Approved,
// Rejected and Discarded admit nothing further. Discarded is reachable
// only by the retention sweep.
var transitions = map[model.PurchaseRequestStatus][]model.PurchaseRequestStatus{
	model.StatusDraft:     {model.StatusSubmitted, model.StatusDiscarded},
	model.StatusSubmitted: {model.StatusApproved, model.StatusRejected},
	model.StatusApproved:  {},
	model.StatusRejected:  {},
	model.StatusDiscarded: {},
}

func canTransition(from, to model.PurchaseRequestStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func assertTransition(from, to model.PurchaseRequestStatus) error {
	if !canTransition(from, to) {
		return apperr.Newf(apperr.InvalidTransition, "cannot transition from %s to %s", from, to)
	}
	return nil
}
