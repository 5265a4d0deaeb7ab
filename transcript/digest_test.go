package transcript

import "testing"

func TestSumDoesNotDisturbLiveContext(t *testing.T) {
	d := New()
	d.Select(0x0303)
	d.Absorb(1, []byte("client hello body"))

	first, err := d.Sum()
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	// Absorbing more bytes after Sum must change a later Sum, proving the
	// live context kept running rather than being consumed.
	d.Absorb(2, []byte("server hello body"))
	second, err := d.Sum()
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	if string(first) == string(second) {
		t.Fatal("second Sum equals first; live digest context did not keep absorbing")
	}

	// Calling Sum again without absorbing anything new must be stable.
	third, err := d.Sum()
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if string(second) != string(third) {
		t.Fatal("repeated Sum with no intervening Absorb changed output")
	}
}

func TestSelectMD5SHA1Length(t *testing.T) {
	d := New()
	d.Select(0x0301)
	d.Absorb(1, []byte("hello"))

	sum, err := d.Sum()
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if len(sum) != 16+20 {
		t.Fatalf("MD5+SHA1 transcript sum length = %d, want 36", len(sum))
	}
}

func TestSelectSHA256Length(t *testing.T) {
	d := New()
	d.Select(0x0303)
	d.Absorb(1, []byte("hello"))

	sum, err := d.Sum()
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if len(sum) != 32 {
		t.Fatalf("SHA-256 transcript sum length = %d, want 32", len(sum))
	}
}

func TestCompletenessEveryByteMatters(t *testing.T) {
	a := New()
	a.Select(0x0303)
	a.Absorb(1, []byte("abc"))
	sumA, _ := a.Sum()

	b := New()
	b.Select(0x0303)
	b.Absorb(1, []byte("abd")) // one byte different
	sumB, _ := b.Sum()

	if string(sumA) == string(sumB) {
		t.Fatal("transcripts over different handshake bytes produced identical digests")
	}
}

func TestUnselectedSumErrors(t *testing.T) {
	d := New()
	d.chosen = SelectedNone
	if _, err := d.Sum(); err == nil {
		t.Fatal("expected error summing an unselected digest")
	}
}
