package domain

import "strings"

// MerchantLiabilityAccount returns the lexical account id for a tenant's
// aggregate merchant liability account.
func MerchantLiabilityAccount(tenant string) string {
	return tenant + "::merchant_liability"
}

// CustomerAccount returns the lexical account id for a customer's wallet
// within a tenant.
func CustomerAccount(tenant, accountRef string) string {
	return tenant + "::acct::" + accountRef
}

// ResolveBalanceAccount maps the account identifier a client sends on a
// balance query to the internal lexical account id. The literals
// "merchant" and "merchant_liability" are shorthand for the tenant's
// merchant liability account; anything else is treated as a customer
// account reference.
func ResolveBalanceAccount(tenant, clientValue string) string {
	switch clientValue {
	case "merchant", "merchant_liability":
		return MerchantLiabilityAccount(tenant)
	default:
		return CustomerAccount(tenant, clientValue)
	}
}

// IsMerchantLiabilityAccount reports whether an account id is a tenant's
// merchant liability account, used by mutation application to skip
// merchant-liability lines.
func IsMerchantLiabilityAccount(accountID string) bool {
	return strings.HasSuffix(accountID, "::merchant_liability")
}
