package service

import (
	"testing"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogsRecordActorAndTransition(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	inv := e.issuedInvoice(t, uuid.New(), svc.ID, "100")

	logs, total, err := e.audit.ListAuditLogs(e.ctx, 1, 10, inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		assert.Equal(t, "tester", l.Actor)
		assert.Equal(t, inv.InvoiceNumber, l.EntityName)
		actions = append(actions, l.Action)
		if l.Action == model.ActionIssueInvoice {
			assert.Equal(t, model.InvoiceDraft, l.Details["from"])
			assert.Equal(t, model.InvoiceIssued, l.Details["to"])
			assert.Equal(t, "invoice", l.Details["entity_type"])
		}
	}
	assert.ElementsMatch(t, []string{model.ActionCreateInvoice, model.ActionIssueInvoice}, actions)

	all, total, err := e.audit.ListAuditLogs(e.ctx, 0, 0, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)
}

func TestRolledBackChangesAreNotAudited(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	client := uuid.New()
	inv := e.issuedInvoice(t, client, svc.ID, "100")
	p, err := e.payments.RecordPayment(e.ctx, RecordPaymentRequest{ClientID: client.String(), Amount: "50", PaymentType: "CASH"})
	require.NoError(t, err)
	before := len(e.recorder.Events())

	_, err = e.payments.Allocate(e.ctx, p.ID, AllocatePaymentRequest{Allocations: []AllocationItem{{InvoiceID: inv.ID, Amount: "60"}}})
	require.Error(t, err)
	assert.Len(t, e.recorder.Events(), before)

	logs, _, err := e.audit.ListAuditLogs(e.ctx, 1, 10, p.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionRecordPayment, logs[0].Action)
}
