package models

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name string
		in   RoleName
		want RoleName
	}{
		{name: "owner canonical", in: RoleOwner, want: RoleOwner},
		{name: "admin legacy", in: RoleName("admin"), want: RoleOwner},
		{name: "manager mixed case", in: RoleName(" Manager "), want: RoleManager},
		{name: "sales representative", in: RoleName("sales_representative"), want: RoleSalesRep},
		{name: "sales_rep canonical", in: RoleSalesRep, want: RoleSalesRep},
		{name: "unknown passes through", in: RoleName("baker"), want: RoleName("baker")},
	}

	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Fatalf("%s: NormalizeRole(%q)=%q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles {
		if !role.Valid() {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	if RoleName("baker").Valid() {
		t.Fatal("expected unknown role to be invalid")
	}
}

func TestUserIsOwnerLegacyRole(t *testing.T) {
	u := &User{Role: RoleName("admin")}
	if !u.IsOwner() {
		t.Fatalf("expected legacy admin role to be treated as owner")
	}
}

func TestSalesLogRevenue(t *testing.T) {
	s := &SalesLog{Quantity: 4, UnitPrice: 250, DiscountAmount: 100}
	if got := s.Revenue(); got != 900 {
		t.Fatalf("Revenue() = %v, want 900", got)
	}
}
