package analyze_test

import (
	"strings"
	"testing"

	"github.com/prhythm/prhythm/internal/domain"
	"github.com/prhythm/prhythm/internal/usecase/analyze"
)

func TestFetchModifiedContents(t *testing.T) {
	local := &fakeLocal{files: map[string]string{
		"server/api.py": "print('hi')\n",
		"server/big.py": strings.Repeat("x", 200*1024),
	}}

	pr := &domain.PullRequest{
		Repository: "octocat/hello",
		Files: []domain.FileChange{
			{Path: "server/api.py"},
			{Path: "server/big.py"},
			{Path: "assets/logo.png"}, // binary, skipped
			{Path: "server/gone.py"},  // not on disk
		},
	}

	got := analyze.FetchModifiedContents(local, pr)

	if got["server/api.py"] != "print('hi')\n" {
		t.Errorf("api.py content = %q", got["server/api.py"])
	}
	if got["server/big.py"] != "File too large to include in context" {
		t.Errorf("big.py content = %q", got["server/big.py"])
	}
	if _, ok := got["assets/logo.png"]; ok {
		t.Error("binary file should be skipped")
	}
	if got["server/gone.py"] != "File not found in repository" {
		t.Errorf("gone.py content = %q", got["server/gone.py"])
	}
}

func TestFetchModifiedContentsNoClone(t *testing.T) {
	pr := &domain.PullRequest{
		Repository: "octocat/hello",
		Files:      []domain.FileChange{{Path: "a.py"}},
	}
	got := analyze.FetchModifiedContents(&fakeLocal{}, pr)
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
