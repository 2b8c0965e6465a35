package arch

import "testing"

func TestGoarchToBasearch(t *testing.T) {
	cases := map[string]string{
		"amd64":   "x86_64",
		"arm64":   "aarch64",
		"386":     "i686",
		"riscv64": "riscv64",
		"mips":    "mips",
	}
	for in, want := range cases {
		if got := goarchToBasearch(in); got != want {
			t.Errorf("goarchToBasearch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompatibleWith(t *testing.T) {
	if !CompatibleWith("noarch", "x86_64") {
		t.Error("noarch must be compatible with every basearch")
	}
	if !CompatibleWith("x86_64", "x86_64") {
		t.Error("matching basearch must be compatible")
	}
	if CompatibleWith("aarch64", "x86_64") {
		t.Error("mismatched, non-noarch arches must not be compatible")
	}
}
