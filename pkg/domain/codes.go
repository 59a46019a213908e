package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Code prefixes for records that carry a human-readable identifier.
const (
	PrefixCollection  = "COL"
	PrefixSeedBatch   = "SEED"
	PrefixGermination = "GER"
	PrefixCultivation = "CUL"
)

// CodePrefix returns the code prefix for kinds that carry codes.
func CodePrefix(kind EntityType) (string, bool) {
	switch kind {
	case EntityCollection:
		return PrefixCollection, true
	case EntitySeedBatch:
		return PrefixSeedBatch, true
	case EntityGerminationRecord:
		return PrefixGermination, true
	case EntityCultivationRecord:
		return PrefixCultivation, true
	default:
		return "", false
	}
}

// NewID returns a surrogate key.
func NewID() string {
	return uuid.NewString()
}

// NewCode builds a code of the form PREFIX-YYYYMMDD-XXXXXX where the suffix is
// six uppercase hex characters. Codes are not guaranteed unique; stores reject
// duplicates with ErrDuplicateCode so callers can regenerate.
func NewCode(prefix string, date time.Time) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), token)
}
