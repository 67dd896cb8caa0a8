package payfast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleBody = "m_payment_id=tx-001&pf_payment_id=1089250&payment_status=COMPLETE" +
	"&item_name=Premium+Plan+%28Monthly%29&amount_gross=499.00&merchant_id=10000100" +
	"&email_address=owner%40school.example" +
	"&custom_str1=organization&custom_str2=8f14e45f-ceea-4672-a398-73a24b1001c9" +
	"&custom_str3=premium&custom_str4=%7B%22billing%22%3A%22annual%22%2C%22seats%22%3A12%7D" +
	"&custom_str5=INV-2024-0042&signature=abcdef0123456789abcdef0123456789"

func TestParseITN(t *testing.T) {
	n, err := ParseITN([]byte(sampleBody))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	assert.Equal(t, "tx-001", n.MerchantRef)
	assert.Equal(t, "1089250", n.PFPaymentID)
	assert.Equal(t, "COMPLETE", n.PaymentStatus)
	assert.Equal(t, "Premium Plan (Monthly)", n.ItemName)
	assert.Equal(t, "499.00", n.AmountGross)
	assert.Equal(t, "owner@school.example", n.EmailAddress)
	assert.Equal(t, "abcdef0123456789abcdef0123456789", n.Signature)

	assert.Equal(t, "organization", n.Custom.Scope)
	assert.Equal(t, "8f14e45f-ceea-4672-a398-73a24b1001c9", n.Custom.OwnerUUID)
	assert.Equal(t, "premium", n.Custom.PlanTier)
	assert.Equal(t, "annual", n.Custom.Options.Billing)
	assert.Equal(t, 12, n.Custom.Options.Seats)
	assert.Equal(t, "INV-2024-0042", n.Custom.InvoiceNo)

	// Field order must match the wire order for signing.
	assert.Equal(t, "m_payment_id", n.Fields[0].Key)
	assert.Equal(t, "pf_payment_id", n.Fields[1].Key)
	assert.Equal(t, "signature", n.Fields[len(n.Fields)-1].Key)

	assert.NoError(t, n.ValidateCustom())
	assert.NoError(t, n.RequireFields())
}

func TestParseITN_Empty(t *testing.T) {
	if _, err := ParseITN(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestParseITN_MalformedOptionsFallsBack(t *testing.T) {
	body := "m_payment_id=tx-002&payment_status=COMPLETE" +
		"&custom_str1=individual&custom_str2=8f14e45f-ceea-4672-a398-73a24b1001c9" +
		"&custom_str3=starter&custom_str4=not-json"

	n, err := ParseITN([]byte(body))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	assert.Equal(t, "monthly", n.Custom.Options.Billing)
	assert.Equal(t, 0, n.Custom.Options.Seats)
}

func TestValidateCustom_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cd   CustomData
	}{
		{name: "bad scope", cd: CustomData{Scope: "team", OwnerUUID: "8f14e45f-ceea-4672-a398-73a24b1001c9", PlanTier: "premium"}},
		{name: "missing owner", cd: CustomData{Scope: "organization", PlanTier: "premium"}},
		{name: "non-uuid owner", cd: CustomData{Scope: "organization", OwnerUUID: "42", PlanTier: "premium"}},
		{name: "missing tier", cd: CustomData{Scope: "organization", OwnerUUID: "8f14e45f-ceea-4672-a398-73a24b1001c9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Custom: tt.cd}
			if err := n.ValidateCustom(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestRequireFields(t *testing.T) {
	n := &Notification{MerchantRef: "tx-1"}
	if err := n.RequireFields(); err == nil {
		t.Fatalf("expected missing payment_status to be rejected")
	}
	n.PaymentStatus = "COMPLETE"
	if err := n.RequireFields(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventID(t *testing.T) {
	n := &Notification{PFPaymentID: "1089250", PaymentStatus: "complete"}
	assert.Equal(t, "1089250:COMPLETE", n.EventID())

	n = &Notification{PaymentStatus: "COMPLETE"}
	assert.Equal(t, "", n.EventID())
}

func TestRecurringIndicator(t *testing.T) {
	n, err := ParseITN([]byte("m_payment_id=tx-003&payment_status=COMPLETE&subscription_type=1"))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !n.Recurring {
		t.Fatalf("expected subscription_type=1 to set Recurring")
	}
}
