package tables

import (
	"strings"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// NormalizeGender maps case-insensitive synonyms to M or F.
// Anything else, including a missing value, becomes Other.
func NormalizeGender(v pgtype.Text) pgtype.Text {
	switch strings.ToUpper(strings.TrimSpace(v.String)) {
	case "M", "MALE":
		return pgtype.Text{String: "M", Valid: true}
	case "F", "FEMALE":
		return pgtype.Text{String: "F", Valid: true}
	default:
		return pgtype.Text{String: "Other", Valid: true}
	}
}

// MaskCardNumber replaces a card number with its masked form.
// A missing number masks to "****".
func MaskCardNumber(v pgtype.Text) pgtype.Text {
	return pgtype.Text{String: core.MaskCardNumber(v.String), Valid: true}
}
