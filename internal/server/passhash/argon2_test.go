package passhash

import "testing"

func TestHashVerify_Roundtrip(t *testing.T) {
	encoded, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := Verify(encoded, "correct horse battery staple")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	encoded, err := Hash("right")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Verify(encoded, "wrong")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("wrong password must not verify")
	}
}

// The previous generation of this service stored bare unsalted digests, so
// equal passwords produced equal hashes. Argon2id hashes must not.
func TestHash_Salted(t *testing.T) {
	a, err := Hash("password")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash("password")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two hashes of the same password are identical; hash is unsalted")
	}
}

func TestVerify_Malformed(t *testing.T) {
	for _, encoded := range []string{"", "plaintext", "$argon2id$v=19$broken", "$md5$x$y$z$w"} {
		if _, err := Verify(encoded, "x"); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}
