// Package models holds the lifecycle state tables. A transition not listed in
// a table is rejected with an invalid_transition error and changes nothing.
package models

import (
	registry "govdash/internal/registry/models"
	dErrors "govdash/pkg/domain-errors"
)

type ShopTransition string

const (
	ShopApprove   ShopTransition = "approve"
	ShopReject    ShopTransition = "reject"
	ShopSuspend   ShopTransition = "suspend"
	ShopReinstate ShopTransition = "reinstate"
)

type DocumentTransition string

const (
	DocumentApprove DocumentTransition = "approve"
	DocumentReject  DocumentTransition = "reject"
	DocumentExpire  DocumentTransition = "expire"
)

type InspectionTransition string

const (
	InspectionStart    InspectionTransition = "start"
	InspectionComplete InspectionTransition = "complete"
	InspectionCancel   InspectionTransition = "cancel"
)

type edge[S comparable, T comparable] struct {
	from S
	via  T
}

var shopTable = map[edge[registry.ShopStatus, ShopTransition]]registry.ShopStatus{
	{registry.ShopStatusPending, ShopApprove}:     registry.ShopStatusApproved,
	{registry.ShopStatusPending, ShopReject}:      registry.ShopStatusRejected,
	{registry.ShopStatusApproved, ShopSuspend}:    registry.ShopStatusSuspended,
	{registry.ShopStatusSuspended, ShopReinstate}: registry.ShopStatusApproved,
}

var documentTable = map[edge[registry.DocumentStatus, DocumentTransition]]registry.DocumentStatus{
	{registry.DocumentStatusPending, DocumentApprove}: registry.DocumentStatusApproved,
	{registry.DocumentStatusPending, DocumentReject}:  registry.DocumentStatusRejected,
	{registry.DocumentStatusPending, DocumentExpire}:  registry.DocumentStatusExpired,
	{registry.DocumentStatusApproved, DocumentExpire}: registry.DocumentStatusExpired,
}

var inspectionTable = map[edge[registry.InspectionStatus, InspectionTransition]]registry.InspectionStatus{
	{registry.InspectionStatusScheduled, InspectionStart}:     registry.InspectionStatusInProgress,
	{registry.InspectionStatusInProgress, InspectionComplete}: registry.InspectionStatusCompleted,
	{registry.InspectionStatusScheduled, InspectionCancel}:    registry.InspectionStatusCancelled,
	{registry.InspectionStatusInProgress, InspectionCancel}:   registry.InspectionStatusCancelled,
}

func (t ShopTransition) IsValid() bool {
	switch t {
	case ShopApprove, ShopReject, ShopSuspend, ShopReinstate:
		return true
	}
	return false
}

func (t DocumentTransition) IsValid() bool {
	switch t {
	case DocumentApprove, DocumentReject, DocumentExpire:
		return true
	}
	return false
}

func (t InspectionTransition) IsValid() bool {
	switch t {
	case InspectionStart, InspectionComplete, InspectionCancel:
		return true
	}
	return false
}

// NextShopStatus returns the status reached from `from` through t.
func NextShopStatus(from registry.ShopStatus, t ShopTransition) (registry.ShopStatus, error) {
	return next(shopTable, from, t, "shop")
}

func NextDocumentStatus(from registry.DocumentStatus, t DocumentTransition) (registry.DocumentStatus, error) {
	return next(documentTable, from, t, "document")
}

func NextInspectionStatus(from registry.InspectionStatus, t InspectionTransition) (registry.InspectionStatus, error) {
	return next(inspectionTable, from, t, "inspection")
}

func next[S ~string, T ~string](table map[edge[S, T]]S, from S, via T, entity string) (S, error) {
	to, ok := table[edge[S, T]{from, via}]
	if !ok {
		return from, dErrors.New(dErrors.CodeInvalidTransition,
			"cannot "+string(via)+" "+entity+" in status "+string(from))
	}
	return to, nil
}
