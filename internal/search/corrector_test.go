package search

import "testing"

func TestCorrectorCorrect(t *testing.T) {
	t.Parallel()

	c := NewCorrector("kubernetes")
	cases := []struct {
		in      string
		want    string
		changed bool
	}{
		{"softwre enginer", "software engineer", true},
		{"Senior Developer", "Senior Developer", false},
		{"desiner londn", "designer london", true},
		{"kubernets", "kubernetes", true},
		{"go", "go", false},
		{"c++ dev", "c++ dev", false},
		{"xyzzyq", "xyzzyq", false},
		{"web3", "web3", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, changed := c.Correct(tc.in)
		if got != tc.want || changed != tc.changed {
			t.Fatalf("Correct(%q) = %q, %v; want %q, %v", tc.in, got, changed, tc.want, tc.changed)
		}
	}
}

func TestCorrectorEditLimit(t *testing.T) {
	t.Parallel()

	c := NewCorrector()
	// 短词只允许 1 处编辑
	if got, changed := c.Correct("lid"); changed {
		t.Fatalf("short token should stay, got %q", got)
	}
	if got, _ := c.Correct("lea"); got != "lead" {
		t.Fatalf("expected lead, got %q", got)
	}
	// 长词允许 2 处编辑，3 处不改写
	if got, _ := c.Correct("enginr"); got != "engineer" {
		t.Fatalf("expected engineer, got %q", got)
	}
	if got, changed := c.Correct("enxxnexr"); changed {
		t.Fatalf("three edits should not be corrected, got %q", got)
	}
}

func TestCorrectorExtraTerms(t *testing.T) {
	t.Parallel()

	if _, changed := NewCorrector().Correct("terrafrm"); changed {
		t.Fatalf("terrafrm should stay without the extra term")
	}
	got, changed := NewCorrector(" Terraform ", "terraform").Correct("terrafrm")
	if !changed || got != "terraform" {
		t.Fatalf("expected terraform, got %q", got)
	}
}
