package model

import "fmt"

// Format identifies a known source file layout.
type Format string

// Known layouts, most specific first. Listing order doubles as the
// tie-break when two detectors report equal confidence.
const (
	FormatLedgerExport  Format = "ledger_export"
	FormatBankStatement Format = "bank_statement"
	FormatCardStatement Format = "card_statement"
	FormatWalletExport  Format = "wallet_export"
	FormatGenericBank   Format = "generic_bank"
	FormatGenericCard   Format = "generic_card"
	FormatUnknown       Format = "unknown"
)

// CardStyle reports whether records from this layout default to expense
// when no other direction signal resolves.
func (f Format) CardStyle() bool {
	return f == FormatCardStatement || f == FormatGenericCard
}

// ParseFormat decodes a user-supplied format name. FormatUnknown is not a
// valid choice.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatLedgerExport, FormatBankStatement, FormatCardStatement,
		FormatWalletExport, FormatGenericBank, FormatGenericCard:
		return Format(s), nil
	default:
		return FormatUnknown, fmt.Errorf("unknown format %q", s)
	}
}

// Confidence is an ordered qualitative ranking used to pick among competing
// format detections. It is never persisted.
type Confidence int

// Confidence levels, lowest first.
const (
	ConfidenceUnknown Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseConfidence decodes a user-supplied confidence level name.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return ConfidenceUnknown, fmt.Errorf("unknown confidence level %q", s)
	}
}

// DetectionResult is one detector's verdict about an input file.
type DetectionResult struct {
	Format     Format
	Reason     string
	Confidence Confidence
}
