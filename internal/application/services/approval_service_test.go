package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/approval"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApprovalFixture(t *testing.T, timeout time.Duration) (*ApprovalService, *SessionService, *fakeBroadcaster) {
	t.Helper()
	logger := newTestLogger(t)
	broadcaster := &fakeBroadcaster{}
	sessions := NewSessionService(broadcaster, logger)
	entries := NewEntryService(sessions, nil, broadcaster, logger)
	approvals := NewApprovalService(entries, sessions, broadcaster, timeout, nil, "", logger)
	t.Cleanup(approvals.Shutdown)
	return approvals, sessions, broadcaster
}

func TestCreateCheckpointBroadcastsLikeEntry(t *testing.T) {
	approvals, sessions, broadcaster := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	req, err := approvals.CreateCheckpoint("v-1", approval.KindPayment, approval.Data{
		MaskedCard: "**** **** **** 4242",
		Amount:     129.99,
	}, "payment", 5)
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, approval.StatusPending, req.Status)
	assert.True(t, approvals.PendingFor("v-1", approval.KindPayment))

	fanout := broadcaster.fanoutEvents()
	assert.Contains(t, fanout, "checkpoint.payment.created")
	assert.Contains(t, fanout, events.EventEntryCreated)
}

func TestCreateCheckpointRequiresIdentity(t *testing.T) {
	approvals, _, _ := newApprovalFixture(t, time.Minute)

	_, err := approvals.CreateCheckpoint("", approval.KindOTP, approval.Data{Code: "123456"}, "otp", 6)
	require.ErrorIs(t, err, entry.ErrValidation)
}

func TestDecideDeliversToOwnerChannelOnly(t *testing.T) {
	approvals, sessions, broadcaster := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")
	sessions.Register("chan-2", "v-2")

	_, err := approvals.CreateCheckpoint("v-1", approval.KindPayment, approval.Data{}, "payment", 5)
	require.NoError(t, err)

	require.NoError(t, approvals.Decide("v-1", approval.KindPayment, "approve"))

	deliveries := broadcaster.directDeliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "chan-1", deliveries[0].channelID)
	assert.Equal(t, events.EventDecisionResult, deliveries[0].event)

	payload, ok := deliveries[0].data.(events.DecisionResultPayload)
	require.True(t, ok)
	assert.Equal(t, string(approval.StatusApproved), payload.Status)
	assert.Equal(t, string(approval.KindPayment), payload.Kind)

	assert.False(t, approvals.PendingFor("v-1", approval.KindPayment))
}

func TestDecideWithoutPendingRequestConflicts(t *testing.T) {
	approvals, sessions, _ := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	err := approvals.Decide("v-1", approval.KindPIN, "reject")
	require.ErrorIs(t, err, approval.ErrUnknownRequest)
}

func TestDecideIsScopedToIdentityAndKind(t *testing.T) {
	approvals, sessions, _ := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	_, err := approvals.CreateCheckpoint("v-1", approval.KindOTP, approval.Data{Code: "123456"}, "otp", 6)
	require.NoError(t, err)

	// Wrong identity and wrong kind both miss the pending request.
	require.ErrorIs(t, approvals.Decide("v-2", approval.KindOTP, "approve"), approval.ErrUnknownRequest)
	require.ErrorIs(t, approvals.Decide("v-1", approval.KindPayment, "approve"), approval.ErrUnknownRequest)

	assert.True(t, approvals.PendingFor("v-1", approval.KindOTP))
}

func TestSecondDecisionConflicts(t *testing.T) {
	approvals, sessions, _ := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	_, err := approvals.CreateCheckpoint("v-1", approval.KindPayment, approval.Data{}, "payment", 5)
	require.NoError(t, err)

	require.NoError(t, approvals.Decide("v-1", approval.KindPayment, "approve"))
	require.ErrorIs(t, approvals.Decide("v-1", approval.KindPayment, "reject"), approval.ErrUnknownRequest)
}

func TestDecideTargetsNewestPending(t *testing.T) {
	approvals, sessions, _ := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	first, err := approvals.CreateCheckpoint("v-1", approval.KindOTP, approval.Data{Code: "111111"}, "otp", 6)
	require.NoError(t, err)
	second, err := approvals.CreateCheckpoint("v-1", approval.KindOTP, approval.Data{Code: "222222"}, "otp", 6)
	require.NoError(t, err)

	require.NoError(t, approvals.Decide("v-1", approval.KindOTP, "reject"))

	decided, ok := approvals.Get(second.ID)
	require.True(t, ok)
	assert.Equal(t, approval.StatusRejected, decided.Status)

	older, ok := approvals.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, approval.StatusPending, older.Status)
}

func TestDecideRejectsUnknownVerdict(t *testing.T) {
	approvals, sessions, _ := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	_, err := approvals.CreateCheckpoint("v-1", approval.KindPIN, approval.Data{Code: "0000"}, "pin", 7)
	require.NoError(t, err)

	require.ErrorIs(t, approvals.Decide("v-1", approval.KindPIN, "maybe"), entry.ErrValidation)
	assert.True(t, approvals.PendingFor("v-1", approval.KindPIN))
}

func TestExpiryDeliversTimeoutResult(t *testing.T) {
	approvals, sessions, broadcaster := newApprovalFixture(t, 20*time.Millisecond)
	sessions.Register("chan-1", "v-1")

	req, err := approvals.CreateCheckpoint("v-1", approval.KindPayment, approval.Data{}, "payment", 5)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, ok := approvals.Get(req.ID)
		return ok && r.Status == approval.StatusExpired
	}, time.Second, 5*time.Millisecond)

	deliveries := broadcaster.directDeliveries()
	require.Len(t, deliveries, 1)
	payload, ok := deliveries[0].data.(events.DecisionResultPayload)
	require.True(t, ok)
	assert.Equal(t, string(approval.StatusExpired), payload.Status)
	assert.Equal(t, "approval timed out", payload.Message)
}

func TestExpiryAfterDecisionIsNoOp(t *testing.T) {
	approvals, sessions, broadcaster := newApprovalFixture(t, 30*time.Millisecond)
	sessions.Register("chan-1", "v-1")

	req, err := approvals.CreateCheckpoint("v-1", approval.KindOTP, approval.Data{Code: "123456"}, "otp", 6)
	require.NoError(t, err)
	require.NoError(t, approvals.Decide("v-1", approval.KindOTP, "approve"))

	time.Sleep(80 * time.Millisecond)

	decided, ok := approvals.Get(req.ID)
	require.True(t, ok)
	assert.Equal(t, approval.StatusApproved, decided.Status)
	assert.Len(t, broadcaster.directDeliveries(), 1)
}

func TestDecisionResultSkippedWhenChannelGone(t *testing.T) {
	approvals, sessions, broadcaster := newApprovalFixture(t, time.Minute)
	sessions.Register("chan-1", "v-1")

	_, err := approvals.CreateCheckpoint("v-1", approval.KindPayment, approval.Data{}, "payment", 5)
	require.NoError(t, err)

	sessions.Unregister("chan-1")

	// The decision still resolves even though nobody is listening.
	require.NoError(t, approvals.Decide("v-1", approval.KindPayment, "approve"))
	assert.Empty(t, broadcaster.directDeliveries())
	assert.False(t, approvals.PendingFor("v-1", approval.KindPayment))
}
