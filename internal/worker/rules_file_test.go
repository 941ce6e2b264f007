package worker

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRuleEntryToDomain_DefaultsEnabledTrue(t *testing.T) {
	entry := ruleEntry{
		Tenant:              "acme",
		EarnMerchantID:      "m-earn",
		BurnMerchantID:      "m-burn",
		EarnMerchantAccount: "acct-1",
	}
	rule := entry.toDomain()
	if !rule.Enabled {
		t.Fatalf("expected enabled to default to true")
	}
	if rule.Tenant != "acme" || rule.EarnMerchantID != "m-earn" || rule.BurnMerchantID != "m-burn" {
		t.Fatalf("unexpected rule fields: %+v", rule)
	}
}

func TestRuleEntryToDomain_ExplicitDisabled(t *testing.T) {
	disabled := false
	entry := ruleEntry{Enabled: &disabled}
	rule := entry.toDomain()
	if rule.Enabled {
		t.Fatalf("expected enabled=false to be preserved")
	}
}

func TestRuleEntryToDomain_CarriesOverrides(t *testing.T) {
	expiry := 90
	bps := 250
	entry := ruleEntry{ExpiryDaysOverride: &expiry, SettlementAdjustmentBPS: &bps}
	rule := entry.toDomain()
	if rule.ExpiryDaysOverride == nil || *rule.ExpiryDaysOverride != 90 {
		t.Fatalf("expected expiry override 90, got %v", rule.ExpiryDaysOverride)
	}
	if rule.SettlementAdjustmentBPS == nil || *rule.SettlementAdjustmentBPS != 250 {
		t.Fatalf("expected bps override 250, got %v", rule.SettlementAdjustmentBPS)
	}
}

func TestRulesFileUnmarshal(t *testing.T) {
	raw := []byte(`
rules:
  - tenant: acme
    earn_merchant_id: m-earn
    burn_merchant_id: m-burn
    earn_merchant_account: acct-1
  - tenant: acme
    earn_merchant_id: m-earn-2
    burn_merchant_id: m-burn
    earn_merchant_account: acct-2
    enabled: false
    expiry_days_override: 30
`)
	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(doc.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(doc.Rules))
	}
	if doc.Rules[0].Tenant != "acme" || doc.Rules[0].EarnMerchantID != "m-earn" {
		t.Fatalf("unexpected first rule: %+v", doc.Rules[0])
	}
	second := doc.Rules[1].toDomain()
	if second.Enabled {
		t.Fatalf("expected second rule disabled")
	}
	if second.ExpiryDaysOverride == nil || *second.ExpiryDaysOverride != 30 {
		t.Fatalf("expected expiry override 30, got %v", second.ExpiryDaysOverride)
	}
}
