package auth

import "testing"

func TestGenerateAPIKeyHashRoundTrip(t *testing.T) {
	fullKey, hash, prefix, err := GenerateAPIKey("live")
	if err != nil {
		t.Fatal(err)
	}
	if HashAPIKey(fullKey) != hash {
		t.Fatalf("expected hash(fullKey) to equal returned hash")
	}
	if len(prefix) == 0 {
		t.Fatalf("expected non-empty prefix")
	}
}

func TestGenerateAPIKeysDiffer(t *testing.T) {
	key1, _, _, err := GenerateAPIKey("live")
	if err != nil {
		t.Fatal(err)
	}
	key2, _, _, err := GenerateAPIKey("live")
	if err != nil {
		t.Fatal(err)
	}
	if key1 == key2 {
		t.Fatalf("expected two generated keys to differ")
	}
}

func TestRequireScopeAdmitsAnyMatch(t *testing.T) {
	ctx := TenantContext{Scopes: []string{"prep"}}
	if err := RequireScope(ctx, "check", "prep"); err != nil {
		t.Fatalf("expected admitted, got %v", err)
	}
}

func TestRequireScopeRejectsMissing(t *testing.T) {
	ctx := TenantContext{Scopes: []string{"prep"}}
	if err := RequireScope(ctx, "check"); err == nil {
		t.Fatalf("expected forbidden")
	}
}
