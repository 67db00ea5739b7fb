package market

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// Outcome selects one of the two order books of a binary market.
type Outcome int8

const (
	Yes Outcome = iota
	No
)

func (o Outcome) String() string {
	switch o {
	case Yes:
		return "YES"
	case No:
		return "NO"
	default:
		return "UNKNOWN"
	}
}

// ParseOutcome accepts "yes"/"no" in any case.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return Yes, nil
	case "NO":
		return No, nil
	default:
		return Yes, fmt.Errorf("invalid outcome %q (expected YES or NO)", s)
	}
}

// Status defines the trading status of a market
type Status int8

const (
	Active   Status = iota // Previews allowed
	Paused                 // Temporarily halted
	Resolved               // Outcome decided (terminal)
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	case Resolved:
		return "Resolved"
	default:
		return "Unknown"
	}
}

// ParseStatus reads a status name case-insensitively; empty means Active.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return Active, nil
	case "paused":
		return Paused, nil
	case "resolved":
		return Resolved, nil
	default:
		return Active, fmt.Errorf("unknown market status %q", s)
	}
}

// Market is a binary prediction market. Each outcome trades on the CLOB
// under its own ERC-1155 token id.
type Market struct {
	ID         string
	Question   string
	YesTokenID string
	NoTokenID  string
	Status     Status
}

// NewMarket creates a market with validation
func NewMarket(id, question, yesToken, noToken string) (*Market, error) {
	m := &Market{
		ID:         id,
		Question:   question,
		YesTokenID: yesToken,
		NoTokenID:  noToken,
		Status:     Active,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks identity fields and token id format.
func (m *Market) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("market id is required")
	}
	for _, tok := range []string{m.YesTokenID, m.NoTokenID} {
		if tok == "" {
			continue
		}
		if err := ValidateTokenID(tok); err != nil {
			return fmt.Errorf("market %s: %w", m.ID, err)
		}
	}
	if m.YesTokenID != "" && m.YesTokenID == m.NoTokenID {
		return fmt.Errorf("market %s: YES and NO share token id %s", m.ID, m.YesTokenID)
	}
	return nil
}

// TokenID returns the CLOB token for an outcome, empty if unknown.
func (m *Market) TokenID(o Outcome) string {
	if o == No {
		return m.NoTokenID
	}
	return m.YesTokenID
}

// ValidateTokenID accepts unsigned 256-bit integers in decimal or 0x-hex form.
func ValidateTokenID(tok string) error {
	v, ok := math.ParseBig256(tok)
	if !ok || v.Sign() <= 0 {
		return fmt.Errorf("invalid token id %q", tok)
	}
	return nil
}

type marketFile struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	YesTokenID string `json:"yes_token_id"`
	NoTokenID  string `json:"no_token_id"`
	Status     string `json:"status"`
}

// LoadFile registers every market listed in a JSON array file. Entries are
// all validated first; on any error nothing is registered.
func LoadFile(reg *Registry, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read markets file: %w", err)
	}
	var entries []marketFile
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse markets file: %w", err)
	}

	markets := make([]*Market, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		m, err := NewMarket(e.ID, e.Question, e.YesTokenID, e.NoTokenID)
		if err != nil {
			return 0, err
		}
		if m.Status, err = ParseStatus(e.Status); err != nil {
			return 0, fmt.Errorf("market %s: %w", e.ID, err)
		}
		if seen[m.ID] || reg.Exists(m.ID) {
			return 0, fmt.Errorf("market %s already registered", m.ID)
		}
		seen[m.ID] = true
		markets = append(markets, m)
	}

	for i, m := range markets {
		if err := reg.Register(m); err != nil {
			return i, err
		}
	}
	return len(markets), nil
}
