package kyc

import (
	"fmt"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
)

type Action string

const (
	ActionStart   Action = "START_KYC"
	ActionUpload  Action = "UPLOAD_DOCUMENTS"
	ActionSubmit  Action = "SUBMIT_KYC"
	ActionApprove Action = "KYC_APPROVED"
	ActionReject  Action = "KYC_REJECTED"
)

type transitionKey struct {
	from   Status
	action Action
}

// transitions is the only place case status moves. Expired is never stored,
// so it has no rows here.
var transitions = map[transitionKey]Status{
	{StatusNotStarted, ActionStart}:    StatusInProgress,
	{StatusInProgress, ActionStart}:    StatusInProgress,
	{StatusPendingReview, ActionStart}: StatusInProgress,
	{StatusVerified, ActionStart}:      StatusInProgress,
	{StatusRejected, ActionStart}:      StatusInProgress,

	{StatusNotStarted, ActionUpload}:    StatusInProgress,
	{StatusInProgress, ActionUpload}:    StatusInProgress,
	{StatusPendingReview, ActionUpload}: StatusPendingReview,
	{StatusVerified, ActionUpload}:      StatusVerified,
	{StatusRejected, ActionUpload}:      StatusRejected,

	{StatusNotStarted, ActionSubmit}:    StatusPendingReview,
	{StatusInProgress, ActionSubmit}:    StatusPendingReview,
	{StatusPendingReview, ActionSubmit}: StatusPendingReview,
	{StatusVerified, ActionSubmit}:      StatusPendingReview,
	{StatusRejected, ActionSubmit}:      StatusPendingReview,

	{StatusPendingReview, ActionApprove}: StatusVerified,
	{StatusPendingReview, ActionReject}:  StatusRejected,
}

func Transition(from Status, action Action) (Status, error) {
	next, ok := transitions[transitionKey{from: from, action: action}]
	if !ok {
		return from, apperr.Conflict("invalid_kyc_state",
			fmt.Sprintf("Cannot apply %s to a KYC case in status %s", action, from)).
			With("currentStatus", from)
	}
	return next, nil
}

// advance moves the case through the transition table and records history.
// Callers set level before advancing so the entry carries the resulting tier.
func (c *Case) advance(action Action, actor, notes string, at time.Time) error {
	next, err := Transition(c.Status, action)
	if err != nil {
		return err
	}
	c.Status = next
	c.History = append(c.History, HistoryEntry{
		Action:      action,
		Status:      next,
		Level:       c.Level,
		PerformedBy: actor,
		Notes:       notes,
		CreatedAt:   at,
	})
	return nil
}
