package market

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	yesTok = "21742633143463906290569050155826241533067272736897614950488156847949938836455"
	noTok  = "48331043336612883890938759509493159234755048973500640148014422747788308965732"
)

func TestNewMarketValidation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		yes     string
		no      string
		wantErr bool
	}{
		{name: "valid", id: "m1", yes: yesTok, no: noTok},
		{name: "hex token", id: "m2", yes: "0x1f", no: "0x20"},
		{name: "tokens optional", id: "m3"},
		{name: "missing id", id: " ", yes: yesTok, no: noTok, wantErr: true},
		{name: "non numeric token", id: "m4", yes: "abc", no: noTok, wantErr: true},
		{name: "zero token", id: "m5", yes: "0", no: noTok, wantErr: true},
		{name: "token over 256 bits", id: "m6", yes: "115792089237316195423570985008687907853269984665640564039457584007913129639936", no: noTok, wantErr: true},
		{name: "same token both sides", id: "m7", yes: yesTok, no: yesTok, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarket(tt.id, "Will it happen?", tt.yes, tt.no)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMarket() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarketTokenID(t *testing.T) {
	m, err := NewMarket("m1", "q", yesTok, noTok)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	if m.TokenID(Yes) != yesTok || m.TokenID(No) != noTok {
		t.Errorf("token mapping wrong: yes=%s no=%s", m.TokenID(Yes), m.TokenID(No))
	}
}

func TestParseOutcome(t *testing.T) {
	if o, err := ParseOutcome("yes"); err != nil || o != Yes {
		t.Errorf("ParseOutcome(yes) = %v, %v", o, err)
	}
	if o, err := ParseOutcome(" NO "); err != nil || o != No {
		t.Errorf("ParseOutcome(NO) = %v, %v", o, err)
	}
	if _, err := ParseOutcome("maybe"); err == nil {
		t.Errorf("expected error for unknown outcome")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()

	m1, _ := NewMarket("b-market", "q1", yesTok, noTok)
	m2, _ := NewMarket("a-market", "q2", "", "")

	if err := reg.Register(m1); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	if err := reg.Register(m2); err != nil {
		t.Fatalf("register m2: %v", err)
	}
	if err := reg.Register(m1); err == nil {
		t.Errorf("duplicate registration should fail")
	}
	if err := reg.Register(nil); err == nil {
		t.Errorf("nil registration should fail")
	}

	if reg.Count() != 2 {
		t.Errorf("expected 2 markets, got %d", reg.Count())
	}
	list := reg.List()
	if list[0].ID != "a-market" || list[1].ID != "b-market" {
		t.Errorf("list not ordered by id: %v", list)
	}

	// Paused markets drop out of the active list
	if err := reg.UpdateStatus("a-market", Paused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if active := reg.ListActive(); len(active) != 1 || active[0].ID != "b-market" {
		t.Errorf("unexpected active list: %v", active)
	}

	// Only resolved markets can be removed
	if err := reg.Remove("b-market"); err == nil {
		t.Errorf("removing an active market should fail")
	}
	if err := reg.UpdateStatus("b-market", Resolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := reg.UpdateStatus("b-market", Active); err == nil {
		t.Errorf("resolved must be terminal")
	}
	if err := reg.Remove("b-market"); err != nil {
		t.Errorf("remove resolved: %v", err)
	}
	if reg.Exists("b-market") {
		t.Errorf("b-market should be gone")
	}
	if _, err := reg.Get("b-market"); err == nil {
		t.Errorf("Get on removed market should fail")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	m, _ := NewMarket("m1", "q", yesTok, noTok)
	_ = reg.Register(m)

	got, _ := reg.Get("m1")
	got.Status = Resolved

	again, _ := reg.Get("m1")
	if again.Status != Active {
		t.Errorf("mutating a returned market leaked into the registry")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.json")
	body := `[
		{"id":"m1","question":"Q1","yes_token_id":"` + yesTok + `","no_token_id":"` + noTok + `"},
		{"id":"m2","question":"Q2","status":"paused"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	n, err := LoadFile(reg, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d markets, want 2", n)
	}
	m2, _ := reg.Get("m2")
	if m2.Status != Paused {
		t.Errorf("m2 status = %s, want Paused", m2.Status)
	}
}

func TestLoadFileRejectsBadStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.json")
	_ = os.WriteFile(path, []byte(`[{"id":"m1","status":"closed"}]`), 0o644)

	if _, err := LoadFile(NewRegistry(), path); err == nil {
		t.Errorf("expected error for unknown status")
	}
}

func TestLoadFileIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad status after good entry", `[{"id":"m1"},{"id":"m2","status":"closed"}]`},
		{"duplicate within file", `[{"id":"m1"},{"id":"m2"},{"id":"m1"}]`},
		{"empty id after good entry", `[{"id":"m1"},{"id":""}]`},
		{"already registered", `[{"id":"m2"},{"id":"existing"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "markets.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}

			reg := NewRegistry()
			existing, err := NewMarket("existing", "", "", "")
			if err != nil {
				t.Fatal(err)
			}
			if err := reg.Register(existing); err != nil {
				t.Fatal(err)
			}

			n, err := LoadFile(reg, path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if n != 0 {
				t.Errorf("loaded %d markets, want 0", n)
			}
			if reg.Count() != 1 {
				t.Errorf("registry has %d markets after failed load, want 1", reg.Count())
			}
		})
	}
}
