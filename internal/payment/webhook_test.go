package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func eventJSON(id, kind, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2020-08-27","data":{"object":%s}}`, id, kind, object)
}

func TestVerify_CheckoutCompleted(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_1", "checkout.session.completed",
		`{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","amount_total":17100,"client_reference_id":"user-1"}`))

	evt, err := NewVerifier(testSecret).Verify(payload, header)

	require.NoError(t, err)
	completed, ok := evt.(CheckoutCompleted)
	require.True(t, ok, "got %T", evt)
	assert.Equal(t, "evt_1", completed.EventID)
	assert.Equal(t, "cs_test_1", completed.SessionID)
	assert.Equal(t, "paid", completed.PaymentStatus)
	assert.Equal(t, int64(17100), completed.AmountTotal)
	assert.Equal(t, "user-1", completed.ClientReferenceID)
}

func TestVerify_AsyncPaymentSucceededIsCompleted(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_2", "checkout.session.async_payment_succeeded",
		`{"id":"cs_test_2","object":"checkout.session","payment_status":"paid"}`))

	evt, err := NewVerifier(testSecret).Verify(payload, header)

	require.NoError(t, err)
	assert.IsType(t, CheckoutCompleted{}, evt)
}

func TestVerify_CheckoutExpired(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_3", "checkout.session.expired",
		`{"id":"cs_test_3","object":"checkout.session","status":"expired"}`))

	evt, err := NewVerifier(testSecret).Verify(payload, header)

	require.NoError(t, err)
	assert.Equal(t, CheckoutExpired{EventID: "evt_3", SessionID: "cs_test_3"}, evt)
}

func TestVerify_UnknownKindIsIgnored(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_4", "invoice.paid", `{"id":"in_1","object":"invoice"}`))

	evt, err := NewVerifier(testSecret).Verify(payload, header)

	require.NoError(t, err)
	assert.Equal(t, Ignored{EventID: "evt_4", Kind: "invoice.paid"}, evt)
}

func TestVerify_MissingSessionID(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_5", "checkout.session.completed", `{"object":"checkout.session"}`))

	_, err := NewVerifier(testSecret).Verify(payload, header)

	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestVerify_MissingHeader(t *testing.T) {
	payload, _ := signed(t, eventJSON("evt_6", "checkout.session.completed", `{"id":"cs_1"}`))

	_, err := NewVerifier(testSecret).Verify(payload, "")

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_7", "checkout.session.completed", `{"id":"cs_1"}`))

	_, err := NewVerifier("whsec_other").Verify(payload, header)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_TamperedBody(t *testing.T) {
	_, header := signed(t, eventJSON("evt_8", "checkout.session.completed", `{"id":"cs_1"}`))

	_, err := NewVerifier(testSecret).Verify([]byte(eventJSON("evt_8", "checkout.session.completed", `{"id":"cs_2"}`)), header)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MissingSecret(t *testing.T) {
	payload, header := signed(t, eventJSON("evt_9", "checkout.session.completed", `{"id":"cs_1"}`))

	_, err := NewVerifier("").Verify(payload, header)

	assert.ErrorIs(t, err, ErrMissingSecret)
}
