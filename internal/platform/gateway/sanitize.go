package gateway

import "strings"

// sensitive keys are compared lowercased with underscores removed.
var sensitiveKeys = map[string]string{
	"cardnumber":           "****",
	"creditcardnumber":     "****",
	"number":               "****",
	"cvv":                  "***",
	"creditcardcvv":        "***",
	"apikey":               "***",
	"creditcardcitizenid":  "***",
	"citizenid":            "***",
	"token":                "***",
	"creditcardtoken":      "***",
	"singleusetoken":       "***",
	"creditcardtrack2":     "***",
	"creditcardexpiration": "**/**",
}

// Sanitize returns a deep copy of v with card data and credentials masked.
// Only maps and slices are walked; anything else is returned unchanged.
func Sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if mask, ok := sensitiveKeys[normalizeKey(k)]; ok && val != nil && val != "" {
				out[k] = mask
				continue
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	}
	return v
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}
