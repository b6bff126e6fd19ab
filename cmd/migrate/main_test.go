package main

import (
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_transactions.sql", true, "0001", "create_transactions"},
		{"0042_add_vendor_index.sql", true, "0042", "add_vendor_index"},
		{"001_invalid.sql", false, "", ""},        // wrong number format
		{"0001_test", false, "", ""},              // missing .sql
		{"0001.sql", false, "", ""},               // missing name
		{"invalid_0001_test.sql", false, "", ""},  // wrong order
		{"README.md", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if (matches != nil) != tt.valid {
				t.Fatalf("match = %v, want valid=%v", matches != nil, tt.valid)
			}
			if !tt.valid {
				return
			}
			if matches[1] != tt.version || matches[2] != tt.name {
				t.Errorf("groups = (%q, %q), want (%q, %q)", matches[1], matches[2], tt.version, tt.name)
			}
		})
	}
}

func TestChecksumStability(t *testing.T) {
	a := checksum([]byte("CREATE TABLE test (id INT64);"))
	b := checksum([]byte("CREATE TABLE test (id INT64);"))
	c := checksum([]byte("CREATE TABLE different (id INT64);"))

	if a != b {
		t.Error("identical content produced different checksums")
	}
	if a == c {
		t.Error("different content produced the same checksum")
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(a))
	}
}
