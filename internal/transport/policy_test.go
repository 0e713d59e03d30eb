package transport

import "testing"

func TestServerAdvertiseStartTLSTable(t *testing.T) {
	cases := []struct {
		policy             SecurityPolicy
		advertise, required bool
	}{
		{OnlyUnsecured, false, false},
		{OnlyTLS, true, true},
		{BothPreferUnsecured, true, false},
		{BothPreferTLS, true, false},
	}
	for _, c := range cases {
		adv, req := ServerAdvertiseStartTLS(c.policy)
		if adv != c.advertise || req != c.required {
			t.Fatalf("policy %v: got (%v,%v), want (%v,%v)", c.policy, adv, req, c.advertise, c.required)
		}
	}
}

func TestDecideClientStartTLSOnlyTLSRequiresOffer(t *testing.T) {
	if _, err := DecideClientStartTLS(OnlyTLS, false, false); err == nil {
		t.Fatalf("expected error when only-tls and starttls not offered")
	}
	d, err := DecideClientStartTLS(OnlyTLS, true, false)
	if err != nil || d != ClientNegotiateStartTLS {
		t.Fatalf("expected negotiate, got %v err=%v", d, err)
	}
}

func TestDecideClientStartTLSOnlyUnsecuredRefusesRequired(t *testing.T) {
	if _, err := DecideClientStartTLS(OnlyUnsecured, true, true); err == nil {
		t.Fatalf("expected error when only-unsecured and starttls required")
	}
	d, err := DecideClientStartTLS(OnlyUnsecured, true, false)
	if err != nil || d != ClientSkipStartTLS {
		t.Fatalf("expected skip, got %v err=%v", d, err)
	}
}

func TestDecideClientStartTLSBothPreferTLSUsesOfferFlag(t *testing.T) {
	d, err := DecideClientStartTLS(BothPreferTLS, true, false)
	if err != nil || d != ClientNegotiateStartTLS {
		t.Fatalf("expected negotiate when offered, got %v err=%v", d, err)
	}
	d, err = DecideClientStartTLS(BothPreferTLS, false, false)
	if err != nil || d != ClientSkipStartTLS {
		t.Fatalf("expected skip when not offered, got %v err=%v", d, err)
	}
}

func TestDecideClientStartTLSBothPreferUnsecuredNeverNegotiates(t *testing.T) {
	d, err := DecideClientStartTLS(BothPreferUnsecured, true, true)
	if err != nil || d != ClientSkipStartTLS {
		t.Fatalf("expected skip regardless of offer, got %v err=%v", d, err)
	}
}
