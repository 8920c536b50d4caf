package token

import "testing"

func TestClaimsUserDetection(t *testing.T) {
	c := Claims{Subject: "user:123", Roles: []string{"user"}}
	if !c.IsUser() || c.IsClient() {
		t.Fatal("expected user principal")
	}
	id, ok := c.UserID()
	if !ok || id != "123" {
		t.Fatalf("user id = %q, ok = %v", id, ok)
	}
	if _, ok := c.ClientID(); ok {
		t.Fatal("expected no client id for user principal")
	}
}

func TestClaimsClientDetection(t *testing.T) {
	c := Claims{Subject: "client:abc123"}
	if c.IsUser() || !c.IsClient() {
		t.Fatal("expected client principal")
	}
	id, ok := c.ClientID()
	if !ok || id != "abc123" {
		t.Fatalf("client id = %q, ok = %v", id, ok)
	}
}

func TestClaimsRoleAndPermissionChecks(t *testing.T) {
	c := Claims{
		Subject:     "user:123",
		Roles:       []string{"admin", "user"},
		Permissions: []string{"ban_user"},
	}
	if !c.HasRole("admin") || !c.HasRole("user") {
		t.Fatal("expected both roles present")
	}
	if c.HasRole("super_admin") {
		t.Fatal("unexpected role present")
	}
	if !c.HasPermission("ban_user") {
		t.Fatal("expected permission present")
	}
	if c.HasPermission("delete_system") {
		t.Fatal("unexpected permission present")
	}
}
