package worker

import "testing"

func TestParseEarnExpiryConfig_Empty(t *testing.T) {
	cfg := parseEarnExpiryConfig(nil)
	if cfg.EarnExpiryDaysDefault != nil {
		t.Fatalf("expected nil default, got %v", *cfg.EarnExpiryDaysDefault)
	}
	if len(cfg.EarnExpiryOverrides) != 0 {
		t.Fatalf("expected no overrides, got %v", cfg.EarnExpiryOverrides)
	}
}

func TestParseEarnExpiryConfig_DefaultAndOverrides(t *testing.T) {
	raw := []byte(`{
		"earn_expiry_days_default": 365,
		"earn_expiry_overrides": {"merchant-a": 90},
		"stamp_programs": [{"id": "ignored"}]
	}`)
	cfg := parseEarnExpiryConfig(raw)
	if cfg.EarnExpiryDaysDefault == nil || *cfg.EarnExpiryDaysDefault != 365 {
		t.Fatalf("expected default 365, got %v", cfg.EarnExpiryDaysDefault)
	}
	if got := cfg.EarnExpiryOverrides["merchant-a"]; got != 90 {
		t.Fatalf("expected override 90, got %d", got)
	}
}

func TestParseEarnExpiryConfig_Malformed(t *testing.T) {
	cfg := parseEarnExpiryConfig([]byte(`not json`))
	if cfg.EarnExpiryDaysDefault != nil || len(cfg.EarnExpiryOverrides) != 0 {
		t.Fatalf("expected zero-value config on malformed input, got %+v", cfg)
	}
}

func TestReceiptChainOrder(t *testing.T) {
	if len(ReceiptChain) != 3 {
		t.Fatalf("expected 3 receipt plugins, got %d", len(ReceiptChain))
	}
	if ReceiptChain[0].Name() != "DefaultEarn" {
		t.Fatalf("expected DefaultEarn first, got %s", ReceiptChain[0].Name())
	}
}

func TestRedeemChainOrder(t *testing.T) {
	if len(RedeemChain) != 1 {
		t.Fatalf("expected 1 redeem plugin, got %d", len(RedeemChain))
	}
	if RedeemChain[0].Name() != "DefaultRedeem" {
		t.Fatalf("expected DefaultRedeem, got %s", RedeemChain[0].Name())
	}
}
