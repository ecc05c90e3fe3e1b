package approval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"github.com/riveredge/platform/internal/model"
)

func callbackInstance(data string) *model.ApprovalInstance {
	return &model.ApprovalInstance{
		UUID:     "inst-1",
		TenantID: 1,
		Data:     datatypes.JSON(data),
	}
}

func TestCompletionCallbackInvokedExactlyOnce(t *testing.T) {
	svc := NewService(nil, nil)

	var calls int
	var gotValue string
	var gotApproved bool
	svc.RegisterCallback("order_uuid", func(inst *model.ApprovalInstance, value string, approved bool) error {
		calls++
		gotValue = value
		gotApproved = approved
		return nil
	})

	svc.runCallbacks(callbackInstance(`{"order_uuid": "abc", "amount": 100}`), true)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "abc", gotValue)
	assert.True(t, gotApproved)
}

func TestCompletionCallbackReceivesRejection(t *testing.T) {
	svc := NewService(nil, nil)

	var gotApproved = true
	svc.RegisterCallback("order_uuid", func(inst *model.ApprovalInstance, value string, approved bool) error {
		gotApproved = approved
		return nil
	})

	svc.runCallbacks(callbackInstance(`{"order_uuid": "abc"}`), false)

	assert.False(t, gotApproved)
}

func TestCallbackSkippedWhenKeyAbsent(t *testing.T) {
	svc := NewService(nil, nil)

	var calls int
	svc.RegisterCallback("order_uuid", func(inst *model.ApprovalInstance, value string, approved bool) error {
		calls++
		return nil
	})

	svc.runCallbacks(callbackInstance(`{"invoice_uuid": "xyz"}`), true)
	svc.runCallbacks(callbackInstance(``), true)

	assert.Equal(t, 0, calls)
}

func TestCallbackErrorDoesNotUnwind(t *testing.T) {
	svc := NewService(nil, nil)

	var after int
	svc.RegisterCallback("order_uuid", func(inst *model.ApprovalInstance, value string, approved bool) error {
		return errors.New("order service down")
	})
	svc.RegisterCallback("order_uuid_2", func(inst *model.ApprovalInstance, value string, approved bool) error {
		after++
		return nil
	})

	assert.NotPanics(t, func() {
		svc.runCallbacks(callbackInstance(`{"order_uuid": "abc", "order_uuid_2": "def"}`), true)
	})
	assert.Equal(t, 1, after)
}

func TestCallbacksSkippedOnNonObjectData(t *testing.T) {
	svc := NewService(nil, nil)

	var calls int
	svc.RegisterCallback("order_uuid", func(inst *model.ApprovalInstance, value string, approved bool) error {
		calls++
		return nil
	})

	svc.runCallbacks(callbackInstance(`["order_uuid"]`), true)

	assert.Equal(t, 0, calls)
}
