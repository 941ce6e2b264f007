package worker

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/store"
)

// rulesFile is the declarative document the rule-runner mode syncs into
// merchant_redemption_rules, the stand-in for an admin UI over that
// table.
type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Tenant                  string `yaml:"tenant"`
	EarnMerchantID          string `yaml:"earn_merchant_id"`
	BurnMerchantID          string `yaml:"burn_merchant_id"`
	EarnMerchantAccount     string `yaml:"earn_merchant_account"`
	ExpiryDaysOverride      *int   `yaml:"expiry_days_override,omitempty"`
	SettlementAdjustmentBPS *int   `yaml:"settlement_adjustment_bps,omitempty"`
	Enabled                 *bool  `yaml:"enabled,omitempty"`
}

// SyncRulesFile reads a YAML rules document from path and upserts every
// entry, returning the count applied. A missing enabled field defaults
// to true so a minimal entry is enough to activate a rule.
func SyncRulesFile(ctx context.Context, q store.Querier, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rules file: %w", err)
	}

	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("parse rules file: %w", err)
	}

	ruleStore := store.NewRuleStore(q)
	applied := 0
	for _, entry := range doc.Rules {
		rule := entry.toDomain()
		if err := ruleStore.Upsert(ctx, rule); err != nil {
			return applied, fmt.Errorf("upsert rule %s/%s/%s: %w", rule.Tenant, rule.EarnMerchantID, rule.BurnMerchantID, err)
		}
		applied++
	}
	return applied, nil
}

// toDomain converts a parsed YAML entry to the domain shape Upsert needs,
// defaulting enabled to true so a minimal entry is enough to activate a
// rule.
func (entry ruleEntry) toDomain() domain.MerchantRedemptionRule {
	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}
	return domain.MerchantRedemptionRule{
		Tenant:                  entry.Tenant,
		EarnMerchantID:          entry.EarnMerchantID,
		BurnMerchantID:          entry.BurnMerchantID,
		EarnMerchantAccount:     entry.EarnMerchantAccount,
		ExpiryDaysOverride:      entry.ExpiryDaysOverride,
		SettlementAdjustmentBPS: entry.SettlementAdjustmentBPS,
		Enabled:                 enabled,
	}
}
