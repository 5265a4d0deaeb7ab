package prf

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"testing"
)

func TestPHashSHA256MatchesHMACChain(t *testing.T) {
	// RFC 5246 test vector for P_SHA256 is not published separately, so
	// this checks internal self-consistency: P_hash output must equal
	// concatenating HMAC(secret, A(i)) for as many rounds as needed.
	secret := []byte("secret")
	seed := []byte("seed")

	got := pHash(sha256.New, secret, seed, 64)
	if len(got) != 64 {
		t.Fatalf("length = %d, want 64", len(got))
	}

	a := seed
	var want []byte
	for len(want) < 64 {
		h := hmac.New(sha256.New, secret)
		h.Write(a)
		a = h.Sum(nil)

		h = hmac.New(sha256.New, secret)
		h.Write(a)
		h.Write(seed)
		want = h.Sum(want)
	}
	want = want[:64]

	if !bytes.Equal(got, want) {
		t.Fatalf("pHash mismatch:\ngot  %x\nwant %x", got, want)
	}
}

func TestExpandDeterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0xAA}, 48)
	seed := [][]byte{bytes.Repeat([]byte{0xBB}, 32), bytes.Repeat([]byte{0xCC}, 32)}

	a := Expand(0x0303, secret, "test label", seed, 40)
	b := Expand(0x0303, secret, "test label", seed, 40)
	if !bytes.Equal(a, b) {
		t.Fatal("Expand is not deterministic for identical inputs")
	}

	c := Expand(0x0303, secret, "other label", seed, 40)
	if bytes.Equal(a, c) {
		t.Fatal("different labels produced identical output")
	}
}

func TestExpandLengthExact(t *testing.T) {
	secret := bytes.Repeat([]byte{0x01}, 20)
	seed := [][]byte{{0x02, 0x03}}
	for _, n := range []int{0, 1, 16, 17, 32, 100, 257} {
		got := Expand(0x0303, secret, "l", seed, n)
		if len(got) != n {
			t.Fatalf("Expand(length=%d) returned %d bytes", n, len(got))
		}
	}
}

func TestExpand10IsMD5XORSHA1WithSplitSecret(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 17) // odd length -> 1-byte overlap
	seed := [][]byte{{0xFF, 0xEE}}
	full := flattenSeed("lbl", seed)

	s1, s2 := splitSecret(secret)
	if len(s1) != 9 || len(s2) != 9 {
		t.Fatalf("splitSecret lengths = %d,%d want 9,9", len(s1), len(s2))
	}
	if !bytes.Equal(secret[8:9], s1[8:9]) || !bytes.Equal(secret[8:9], s2[0:1]) {
		t.Fatal("split halves should overlap by exactly one byte")
	}

	want := make([]byte, 32)
	md5Out := pHash(md5.New, s1, full, 32)
	sha1Out := pHash(sha1.New, s2, full, 32)
	for i := range want {
		want[i] = md5Out[i] ^ sha1Out[i]
	}

	got := Expand(0x0301, secret, "lbl", seed, 32)
	if !bytes.Equal(got, want) {
		t.Fatalf("PRF 1.0 composition mismatch:\ngot  %x\nwant %x", got, want)
	}
}

func TestMasterSecretLength(t *testing.T) {
	preMaster := bytes.Repeat([]byte{0x10}, PreMasterSecretLen)
	cr := bytes.Repeat([]byte{0x20}, 32)
	sr := bytes.Repeat([]byte{0x30}, 32)

	ms := MasterSecret(0x0303, preMaster, cr, sr)
	if len(ms) != MasterSecretLen {
		t.Fatalf("master secret length = %d, want %d", len(ms), MasterSecretLen)
	}
}

func TestKeyBlockLengthAndDeterminism(t *testing.T) {
	ms := bytes.Repeat([]byte{0x55}, MasterSecretLen)
	sr := bytes.Repeat([]byte{0x66}, 32)
	cr := bytes.Repeat([]byte{0x77}, 32)

	const total = 2 * (32 + 16 + 16) // 2*(digest+key+iv), arbitrary suite shape
	kb1 := KeyBlock(0x0303, ms, sr, cr, total)
	kb2 := KeyBlock(0x0303, ms, sr, cr, total)
	if len(kb1) != total {
		t.Fatalf("key block length = %d, want %d", len(kb1), total)
	}
	if !bytes.Equal(kb1, kb2) {
		t.Fatal("key block is not deterministic in (master secret, client random, server random)")
	}
}

func TestFinishedLabelsDiffer(t *testing.T) {
	ms := bytes.Repeat([]byte{0x01}, MasterSecretLen)
	digest := bytes.Repeat([]byte{0x02}, 32)

	c := ClientFinished(0x0303, ms, digest)
	s := ServerFinished(0x0303, ms, digest)
	if len(c) != 12 || len(s) != 12 {
		t.Fatalf("Finished verify_data must be 12 bytes, got %d/%d", len(c), len(s))
	}
	if bytes.Equal(c, s) {
		t.Fatal("client and server Finished must differ (different labels)")
	}
}
