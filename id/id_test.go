package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/echelon/id"
)

func TestConstructorsCarryPrefix(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"CustomRoleID", id.NewCustomRoleID, "crole_"},
		{"AssignmentID", id.NewAssignmentID, "asgn_"},
		{"PermissionID", id.NewPermissionID, "perm_"},
		{"GrantID", id.NewGrantID, "pgrant_"},
		{"AuditID", id.NewAuditID, "audit_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRejectsForeignPrefix(t *testing.T) {
	if _, err := id.ParseAssignmentID(id.NewGrantID().String()); err == nil {
		t.Fatal("expected assignment parser to reject a grant ID")
	}
	if _, err := id.ParseCustomRoleID(id.NewAuditID().String()); err == nil {
		t.Fatal("expected custom role parser to reject an audit ID")
	}

	a := id.NewAssignmentID()
	parsed, err := id.ParseAssignmentID(a.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != a {
		t.Errorf("round-trip mismatch: %q != %q", parsed, a)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("expected NULL value for nil ID, got %v (%v)", v, err)
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewGrantID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromBytes != original {
		t.Error("byte scan mismatch")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
