package maze

import "testing"

func TestIsMazePath(t *testing.T) {
	if !IsMazePath("/trap/abc123") {
		t.Fatal("expected /trap/ to be a maze path")
	}
	if !IsMazePath("/maze/def456") {
		t.Fatal("expected /maze/ to be a maze path")
	}
	if IsMazePath("/admin/config") {
		t.Fatal("did not expect /admin/ to be a maze path")
	}
}

func TestDeterministicGeneration(t *testing.T) {
	cfg := DefaultConfig()
	page1 := GeneratePage(PathToSeed("/trap/test123"), "/trap/test123", cfg)
	page2 := GeneratePage(PathToSeed("/trap/test123"), "/trap/test123", cfg)
	if page1 != page2 {
		t.Fatal("same seed and path should generate identical pages")
	}
}

func TestDifferentPathsDifferentPages(t *testing.T) {
	cfg := DefaultConfig()
	page1 := GeneratePage(PathToSeed("/trap/path1"), "/trap/path1", cfg)
	page2 := GeneratePage(PathToSeed("/trap/path2"), "/trap/path2", cfg)
	if page1 == page2 {
		t.Fatal("different paths should generate different pages")
	}
}

func TestPageSeedVariesByEntropy(t *testing.T) {
	cfg := DefaultConfig()
	path := "/trap/same-path"
	page1 := GeneratePage(PageSeed(path, 111), path, cfg)
	page2 := GeneratePage(PageSeed(path, 222), path, cfg)
	if page1 == page2 {
		t.Fatal("different entropy values should generate different pages for the same path")
	}
}

func TestSeededRngDeterministic(t *testing.T) {
	r1 := NewSeededRng(12345)
	r2 := NewSeededRng(12345)
	for i := 0; i < 10; i++ {
		if r1.Next() != r2.Next() {
			t.Fatal("same seed should produce same sequence")
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := "maze-test-secret"
	token := IssueChildToken(nil, "/maze/a", "/maze/", "ipb", "uab", 120, 8, 3, "nonce", 2, 1_735_000_000)
	raw, err := Sign(token, secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	now := int64(1_735_000_010)
	parsed, err := Verify(raw, secret, &now)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}
	if parsed.FlowID != token.FlowID {
		t.Fatalf("flow id mismatch")
	}
	if parsed.PathDigest != Digest("/maze/a") {
		t.Fatal("unexpected path digest")
	}
}

func TestTokenRejectsSignatureMismatch(t *testing.T) {
	secret := "maze-test-secret"
	token := IssueChildToken(nil, "/maze/a", "/maze/", "ipb", "uab", 120, 8, 3, "nonce", 2, 1_735_000_000)
	raw, _ := Sign(token, secret)
	raw += "x"
	now := int64(1_735_000_010)
	_, err := Verify(raw, secret, &now)
	if err != TokenErrSignatureMismatch {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	secret := "maze-test-secret"
	token := IssueChildToken(nil, "/maze/a", "/maze/", "ipb", "uab", 1, 8, 3, "nonce", 2, 1_735_000_000)
	raw, _ := Sign(token, secret)
	now := int64(1_735_000_100)
	_, err := Verify(raw, secret, &now)
	if err != TokenErrExpired {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestMicroPoWAcceptsValidNonce(t *testing.T) {
	token := "sample-token"
	difficulty := 8
	found := false
	for nonce := 0; nonce < 200000; nonce++ {
		probe := itoa(nonce)
		if VerifyMicroPoW(token, probe, difficulty) {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a valid nonce to be found quickly")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestExpansionSeedSignatureRejectsTampering(t *testing.T) {
	secret := "maze-test-secret"
	sig := SignExpansionSeed(secret, "flow-a", "/maze/", "nonce-1", 2, 1234, 6, 16)
	if !VerifyExpansionSeedSignature(sig, secret, "flow-a", "/maze/", "nonce-1", 2, 1234, 6, 16) {
		t.Fatal("expected signature to verify")
	}
	if VerifyExpansionSeedSignature(sig, secret, "flow-a", "/maze/", "nonce-1", 2, 9999, 6, 16) {
		t.Fatal("expected tampered seed to fail verification")
	}
}

func TestSiblingTokensOperationUniquePerEdge(t *testing.T) {
	now := int64(1_735_000_000)
	parent := IssueChildToken(nil, "/maze/root", "/maze/", "ipb", "uab", 120, 8, 3, "nonce", 2, now)
	first := IssueChildToken(parent, "/maze/first-edge", "/maze/", "ipb", "uab", 120, 8, 3, "nonce", 2, now)
	second := IssueChildToken(parent, "/maze/second-edge", "/maze/", "ipb", "uab", 120, 8, 3, "nonce", 2, now)
	if first.OperationID == second.OperationID {
		t.Fatal("expected distinct operation ids per edge")
	}
	if first.PrevDigest != second.PrevDigest {
		t.Fatal("expected siblings to share the same prev digest")
	}
}
