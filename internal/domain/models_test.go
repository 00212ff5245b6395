package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClaimKey(t *testing.T) {
	cases := map[string]struct {
		externalID, productID string
		want                  string
	}{
		"simple":      {"261", "starter-kit", "261_starter-kit"},
		"empty ext":   {"", "p", "_p"},
		"empty prod":  {"x", "", "x_"},
		"both filled": {"12345", "pro-suite", "12345_pro-suite"},
	}
	for name, tc := range cases {
		if got := ClaimKey(tc.externalID, tc.productID); got != tc.want {
			t.Errorf("%s: ClaimKey(%q, %q) = %q; want %q", name, tc.externalID, tc.productID, got, tc.want)
		}
	}
}

func TestNewStateDocument_AllMapsInitialized(t *testing.T) {
	d := NewStateDocument()
	if d.Mappings == nil || d.DeliveredReceipts == nil || d.DeliveredPasses == nil {
		t.Fatalf("expected all maps initialized, got %+v", d)
	}
	if len(d.Mappings)+len(d.DeliveredReceipts)+len(d.DeliveredPasses) != 0 {
		t.Fatalf("expected empty document")
	}
}

func TestNormalize_FillsNilMaps(t *testing.T) {
	var d StateDocument
	d.Normalize()
	if d.Mappings == nil || d.DeliveredReceipts == nil || d.DeliveredPasses == nil {
		t.Fatalf("Normalize left nil maps: %+v", d)
	}

	// Existing entries survive.
	d.Mappings["a"] = "b"
	d.Normalize()
	if d.Mappings["a"] != "b" {
		t.Fatalf("Normalize dropped existing entry")
	}
}

func TestNormalize_AfterPartialDecode(t *testing.T) {
	var d StateDocument
	if err := json.Unmarshal([]byte(`{"mappings":{"1":"d1"}}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d.Normalize()
	if d.DeliveredReceipts == nil || d.DeliveredPasses == nil {
		t.Fatalf("expected omitted ledgers initialized")
	}
	if d.Mappings["1"] != "d1" {
		t.Fatalf("decoded mapping lost")
	}
}

func TestClone_IsDeepForMaps(t *testing.T) {
	now := time.Now().UTC()
	src := NewStateDocument()
	src.Mappings["261"] = "d1"
	src.DeliveredReceipts["r1"] = Receipt{
		Status:      StatusDelivered,
		Payload:     ReceiptPayload{ExternalID: "261", ProductID: "starter-kit", ChatID: "d1"},
		DeliveredAt: &now,
	}
	src.DeliveredPasses[ClaimKey("261", "starter-kit")] = Claim{
		ProductID: "starter-kit", ExternalID: "261", ChatID: "d1", DeliveredAt: now,
	}

	dst := src.Clone()

	// Mutating the source must not leak into the clone.
	src.Mappings["261"] = "d2"
	src.DeliveredReceipts["r2"] = Receipt{Status: StatusPending}
	delete(src.DeliveredPasses, ClaimKey("261", "starter-kit"))

	if dst.Mappings["261"] != "d1" {
		t.Fatalf("clone mapping mutated: %q", dst.Mappings["261"])
	}
	if _, ok := dst.DeliveredReceipts["r2"]; ok {
		t.Fatalf("clone picked up new receipt")
	}
	if _, ok := dst.DeliveredPasses[ClaimKey("261", "starter-kit")]; !ok {
		t.Fatalf("clone lost claim")
	}
}

func TestStateDocument_JSONKeys(t *testing.T) {
	d := NewStateDocument()
	d.Mappings["261"] = "d1"
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"mappings", "deliveredReceipts", "deliveredPasses"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("document JSON missing top-level key %q", key)
		}
	}
}

func TestReceipt_DeliveredAtOmittedWhenPending(t *testing.T) {
	b, err := json.Marshal(Receipt{Status: StatusPending, Payload: ReceiptPayload{ExternalID: "1", ProductID: "p"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["deliveredAt"]; ok {
		t.Fatalf("pending receipt should not carry deliveredAt: %s", b)
	}
}
