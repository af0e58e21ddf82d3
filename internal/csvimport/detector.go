package csvimport

import "strings"

// normalizeHeader lowercases and trims a header cell, stripping a UTF-8 BOM
// if the export carries one.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.ToLower(strings.TrimSpace(h))
}

// DetectLayout compares the header row against the known layout table and
// returns the best match. When several layouts' signatures are present in the
// headers, the most specific signature wins; ties fall back to table order.
// hint "auto" or "" means detect; any other hint selects that bank directly.
func DetectLayout(headers []string, hint string) (Layout, bool) {
	if hint != "" && hint != "auto" {
		return FindLayout(hint)
	}

	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[normalizeHeader(h)] = true
	}

	var best Layout
	found := false
	for _, l := range Layouts {
		if !signaturePresent(l, have) {
			continue
		}
		if !found || len(l.Signature) > len(best.Signature) {
			best = l
			found = true
		}
	}
	return best, found
}

func signaturePresent(l Layout, have map[string]bool) bool {
	for _, col := range l.Signature {
		if !have[col] {
			return false
		}
	}
	return true
}
