package payfast

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gofiber/fiber/v2/log"
)

// Field is one form pair in received order. Order matters: the signature is
// computed over the fields exactly as PayFast sent them.
type Field struct {
	Key   string
	Value string
}

// Notification is a parsed ITN delivery.
type Notification struct {
	Fields []Field

	MerchantID      string
	MerchantRef     string // m_payment_id, set by us at payment initiation
	PFPaymentID     string // pf_payment_id, PayFast's own id
	PaymentStatus   string
	ItemName        string
	ItemDescription string
	AmountGross     string
	EmailAddress    string
	Token           string // present on recurring billing notifications
	Recurring       bool   // explicit recurring indicator if sent
	Signature       string

	Custom CustomData
}

// CustomData is the typed view of the opaque custom_str slots:
// custom_str1=scope, custom_str2=owner uuid, custom_str3=plan tier,
// custom_str4=JSON purchase options, custom_str5=invoice number.
type CustomData struct {
	Scope     string `validate:"required,oneof=organization individual"`
	OwnerUUID string `validate:"required,uuid4"`
	PlanTier  string `validate:"required,max=50"`
	InvoiceNo string `validate:"max=100"`
	Options   PurchaseOptions
}

// PurchaseOptions is the JSON blob carried in custom_str4.
type PurchaseOptions struct {
	Billing string `json:"billing" validate:"omitempty,oneof=monthly annual"`
	Seats   int    `json:"seats" validate:"gte=0"`
}

var validate = validator.New()

// ErrMissingRequired marks a payload that lacks the fields the handler cannot
// proceed without.
var ErrMissingRequired = errors.New("payfast: missing required field")

// ParseITN decodes a form-encoded ITN body while preserving the original
// field order. Duplicate keys keep their first value for the typed view but
// all occurrences stay in Fields for signing.
func ParseITN(raw []byte) (*Notification, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return nil, fmt.Errorf("payfast: empty ITN body")
	}

	n := &Notification{}
	seen := map[string]string{}
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("payfast: malformed field key %q: %w", key, err)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("payfast: malformed field value for %q: %w", decodedKey, err)
		}
		n.Fields = append(n.Fields, Field{Key: decodedKey, Value: decodedValue})
		if _, ok := seen[decodedKey]; !ok {
			seen[decodedKey] = decodedValue
		}
	}

	n.MerchantID = seen["merchant_id"]
	n.MerchantRef = seen["m_payment_id"]
	n.PFPaymentID = seen["pf_payment_id"]
	n.PaymentStatus = seen["payment_status"]
	n.ItemName = seen["item_name"]
	n.ItemDescription = seen["item_description"]
	n.AmountGross = seen["amount_gross"]
	n.EmailAddress = seen["email_address"]
	n.Token = seen["token"]
	n.Signature = seen["signature"]
	n.Recurring = seen["subscription_type"] == "1" || strings.EqualFold(seen["recurring"], "true")

	n.Custom = parseCustomData(seen)

	return n, nil
}

// RequireFields checks that the fields the state machine depends on are
// present.
func (n *Notification) RequireFields() error {
	if strings.TrimSpace(n.MerchantRef) == "" {
		return fmt.Errorf("%w: m_payment_id", ErrMissingRequired)
	}
	if strings.TrimSpace(n.PaymentStatus) == "" {
		return fmt.Errorf("%w: payment_status", ErrMissingRequired)
	}
	return nil
}

// ValidateCustom validates the typed custom slots. Called immediately after
// parsing so malformed envelopes are rejected before any state is touched.
func (n *Notification) ValidateCustom() error {
	if err := validate.Struct(n.Custom); err != nil {
		return fmt.Errorf("payfast: invalid custom data: %w", err)
	}
	return nil
}

// EventID returns the dedupe key for the audit table: PayFast's payment id
// when present, qualified by status so a later cancellation of the same
// payment is not swallowed as a duplicate of its completion.
func (n *Notification) EventID() string {
	if n.PFPaymentID == "" {
		return ""
	}
	return n.PFPaymentID + ":" + strings.ToUpper(strings.TrimSpace(n.PaymentStatus))
}

func parseCustomData(seen map[string]string) CustomData {
	cd := CustomData{
		Scope:     strings.ToLower(strings.TrimSpace(seen["custom_str1"])),
		OwnerUUID: strings.TrimSpace(seen["custom_str2"]),
		PlanTier:  strings.TrimSpace(seen["custom_str3"]),
		InvoiceNo: strings.TrimSpace(seen["custom_str5"]),
	}

	// Malformed or absent option JSON falls back to defaults instead of
	// failing the delivery; seats=0 later resolves to the plan default.
	cd.Options = PurchaseOptions{Billing: "monthly", Seats: 0}
	if rawOpts := strings.TrimSpace(seen["custom_str4"]); rawOpts != "" {
		var opts PurchaseOptions
		if err := json.Unmarshal([]byte(rawOpts), &opts); err != nil {
			log.Warnf("[PayFast] unparseable custom_str4 %q, using defaults: %v", rawOpts, err)
		} else {
			if opts.Billing == "" {
				opts.Billing = "monthly"
			}
			if opts.Seats < 0 {
				opts.Seats = 0
			}
			cd.Options = opts
		}
	}

	return cd
}
