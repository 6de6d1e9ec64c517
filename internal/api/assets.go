package api

import "strings"

// counterAsset extracts the non-USDG leg from a display pair name like
// "USDG/USD" or "XBT/USDG". Pairs without a recognizable USDG leg yield "".
func counterAsset(pair string) string {
	upper := strings.ToUpper(pair)
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.SplitN(upper, sep, 2); len(parts) == 2 {
			switch {
			case parts[0] == "USDG":
				return parts[1]
			case parts[1] == "USDG":
				return parts[0]
			}
			return ""
		}
	}
	if rest := strings.TrimPrefix(upper, "USDG"); rest != upper && rest != "" {
		return rest
	}
	if rest := strings.TrimSuffix(upper, "USDG"); rest != upper && rest != "" {
		return rest
	}
	return ""
}
