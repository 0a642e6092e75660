package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	registry "govdash/internal/registry/models"
	dErrors "govdash/pkg/domain-errors"
)

func TestNextShopStatus(t *testing.T) {
	tests := []struct {
		from    registry.ShopStatus
		via     ShopTransition
		want    registry.ShopStatus
		invalid bool
	}{
		{registry.ShopStatusPending, ShopApprove, registry.ShopStatusApproved, false},
		{registry.ShopStatusPending, ShopReject, registry.ShopStatusRejected, false},
		{registry.ShopStatusApproved, ShopSuspend, registry.ShopStatusSuspended, false},
		{registry.ShopStatusSuspended, ShopReinstate, registry.ShopStatusApproved, false},
		{registry.ShopStatusPending, ShopSuspend, "", true},
		{registry.ShopStatusApproved, ShopApprove, "", true},
		{registry.ShopStatusApproved, ShopReject, "", true},
		{registry.ShopStatusRejected, ShopApprove, "", true},
		{registry.ShopStatusRejected, ShopReinstate, "", true},
		{registry.ShopStatusSuspended, ShopSuspend, "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.via), func(t *testing.T) {
			got, err := NextShopStatus(tt.from, tt.via)
			if tt.invalid {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDocumentStatus(t *testing.T) {
	got, err := NextDocumentStatus(registry.DocumentStatusPending, DocumentApprove)
	require.NoError(t, err)
	assert.Equal(t, registry.DocumentStatusApproved, got)

	got, err = NextDocumentStatus(registry.DocumentStatusApproved, DocumentExpire)
	require.NoError(t, err)
	assert.Equal(t, registry.DocumentStatusExpired, got)

	for _, from := range []registry.DocumentStatus{registry.DocumentStatusApproved, registry.DocumentStatusRejected, registry.DocumentStatusExpired} {
		_, err := NextDocumentStatus(from, DocumentReject)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), from)
	}
	_, err = NextDocumentStatus(registry.DocumentStatusRejected, DocumentExpire)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestNextInspectionStatus(t *testing.T) {
	got, err := NextInspectionStatus(registry.InspectionStatusScheduled, InspectionStart)
	require.NoError(t, err)
	assert.Equal(t, registry.InspectionStatusInProgress, got)

	got, err = NextInspectionStatus(registry.InspectionStatusInProgress, InspectionCancel)
	require.NoError(t, err)
	assert.Equal(t, registry.InspectionStatusCancelled, got)

	_, err = NextInspectionStatus(registry.InspectionStatusScheduled, InspectionComplete)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	_, err = NextInspectionStatus(registry.InspectionStatusCompleted, InspectionCancel)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestTransitionValidity(t *testing.T) {
	assert.True(t, ShopSuspend.IsValid())
	assert.False(t, ShopTransition("delete").IsValid())
	assert.True(t, DocumentExpire.IsValid())
	assert.False(t, InspectionTransition("resume").IsValid())
}
