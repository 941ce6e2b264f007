package domain

// MerchantStatus tracks whether a merchant account is frozen for
// attribution purposes. Frozen partners are dropped from redemption
// candidate lists.
type MerchantStatus struct {
	Tenant          string
	MerchantAccount string
	Frozen          bool
}

// FreezeRequest is a queued freeze/unfreeze decision, drained by the
// freezer worker so the decision itself can be made by an external risk
// system without handing it a direct database credential.
type FreezeRequest struct {
	RequestID       string
	Tenant          string
	MerchantAccount string
	Frozen          bool
	Reason          *string
}
