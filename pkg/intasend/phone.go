package intasend

import (
	"fmt"
	"strings"
)

const kenyaCountryCode = "254"

// NormalizePhone converts local M-Pesa numbers (07.., 01.., 7.., 1..) to the 254 form the gateway expects.
// Numbers must end up as 254 followed by nine digits.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return "", fmt.Errorf("phone number is required")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number %q must contain digits only", raw)
		}
	}

	switch {
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		cleaned = kenyaCountryCode + cleaned[1:]
	case len(cleaned) == 9 && (cleaned[0] == '7' || cleaned[0] == '1'):
		cleaned = kenyaCountryCode + cleaned
	}

	if !strings.HasPrefix(cleaned, kenyaCountryCode) || len(cleaned) != 12 {
		return "", fmt.Errorf("phone number %q must be a 254XXXXXXXXX or 0XXXXXXXXX number", raw)
	}
	return cleaned, nil
}
