package git

import (
	"context"
	"testing"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	tr := createTestRepo(t)
	tr.commit("one", map[string]string{"a.txt": "1\n", "b.txt": "1\n"})
	tr.write("a.txt", "2\n")
	tr.write("b.txt", "2\n")
	if _, err := tr.wt.Add("b.txt"); err != nil {
		t.Fatalf("add: %v", err)
	}
	tr.write("c.txt", "new\n")
	repo := tr.open()

	st, err := repo.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Branch != "main" || st.Detached || !st.HasChanges() {
		t.Fatalf("unexpected status header: %+v", st)
	}
	if len(st.Files) != 3 {
		t.Fatalf("expected 3 files, got %+v", st.Files)
	}
	a, b, c := st.Files[0], st.Files[1], st.Files[2]
	if a.Path != "a.txt" || a.Staged() || a.Code() != Modified {
		t.Fatalf("unexpected a.txt: %+v", a)
	}
	if b.Path != "b.txt" || !b.Staged() || b.Staging != Modified {
		t.Fatalf("unexpected b.txt: %+v", b)
	}
	if c.Path != "c.txt" || c.Staged() || c.Code() != Untracked {
		t.Fatalf("unexpected c.txt: %+v", c)
	}
}

func TestStatusClean(t *testing.T) {
	t.Parallel()

	tr := createTestRepo(t)
	tr.commit("one", map[string]string{"a.txt": "1\n"})
	repo := tr.open()

	st, err := repo.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.HasChanges() {
		t.Fatalf("expected clean status, got %+v", st.Files)
	}
}

func TestStatusCodeString(t *testing.T) {
	t.Parallel()

	cases := map[StatusCode]string{
		Modified:           "modified",
		Untracked:          "untracked",
		UpdatedButUnmerged: "conflict",
		Unmodified:         "unmodified",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("%q.String() = %q, want %q", byte(code), got, want)
		}
	}
}
