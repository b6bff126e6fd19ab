package domain

import "strings"

// VendorMap maps a normalized (uppercased) vendor token to a category name.
// It is populated both by explicit user action and implicitly whenever a
// transaction is confidently auto-categorized.
type VendorMap map[string]string

// NormalizeVendorKey produces the canonical form of a vendor token.
func NormalizeVendorKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Put stores a mapping under the normalized key. Blank keys are ignored.
func (m VendorMap) Put(vendor, category string) {
	key := NormalizeVendorKey(vendor)
	if key == "" || category == "" {
		return
	}
	m[key] = category
}

// Clone returns a copy of the map.
func (m VendorMap) Clone() VendorMap {
	out := make(VendorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
