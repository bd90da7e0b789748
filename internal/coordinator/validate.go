package coordinator

import (
	"fmt"
	"strings"

	"github.com/vietddude/tradeup/internal/core/domain"
)

// ValidateTradeUpInput checks a trade-up request and returns a
// *ValidationError naming every violation, or nil.
func ValidateTradeUpInput(assetIDs []string) error {
	var violations, duplicates []string

	if len(assetIDs) != domain.TradeUpInputCount {
		violations = append(violations,
			fmt.Sprintf("expected exactly %d asset ids, got %d", domain.TradeUpInputCount, len(assetIDs)))
	}

	seen := make(map[string]int, len(assetIDs))
	for i, id := range assetIDs {
		if strings.TrimSpace(id) == "" {
			violations = append(violations, fmt.Sprintf("assetIds[%d]: must be a non-empty string", i))
			continue
		}
		if first, dup := seen[id]; dup {
			duplicates = append(duplicates, fmt.Sprintf("assetIds[%d] repeats assetIds[%d] (%s)", i, first, id))
			continue
		}
		seen[id] = i
	}

	if len(violations) > 0 || len(duplicates) > 0 {
		return &ValidationError{Violations: violations, Duplicates: duplicates}
	}
	return nil
}
