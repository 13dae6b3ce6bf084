package signature

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/lunalang/generics/internal/scenario"
)

// Fixture archives under testdata hold a scenario.yaml plus an expected file
// listing the minimized requirements one per line. An empty "error" file in
// the archive means the scenario is expected to be invalid.
func TestFixtures(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no fixture archives under testdata")
	}

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txt"), func(t *testing.T) {
			archive, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatalf("parsing %s: %v", file, err)
			}

			var scenarioData, expected []byte
			wantError := false
			for _, f := range archive.Files {
				switch f.Name {
				case "scenario.yaml":
					scenarioData = f.Data
				case "expected":
					expected = f.Data
				case "error":
					wantError = true
				default:
					t.Fatalf("unexpected file %q in %s", f.Name, file)
				}
			}
			if scenarioData == nil {
				t.Fatalf("%s has no scenario.yaml", file)
			}

			sc, err := scenario.Load(scenarioData)
			if err != nil {
				t.Fatalf("loading scenario: %v", err)
			}
			registry, reqs, err := sc.Build()
			if err != nil {
				t.Fatalf("building scenario: %v", err)
			}

			session := NewSession(registry)
			var minimized []Requirement
			var hadError bool
			if sc.Minimize != "" {
				minimized, hadError, err = session.RequirementSignature(sc.Minimize)
				if err != nil {
					t.Fatalf("RequirementSignature(%s): %v", sc.Minimize, err)
				}
			} else {
				sig, err := session.Minimize(reqs)
				if err != nil {
					t.Fatalf("Minimize: %v", err)
				}
				minimized, hadError = sig.Requirements, sig.HadError
			}

			var got []string
			for _, req := range minimized {
				got = append(got, req.String())
			}
			want := splitLines(expected)
			if strings.Join(got, "\n") != strings.Join(want, "\n") {
				t.Errorf("minimized requirements:\n%s\nwant:\n%s",
					strings.Join(got, "\n"), strings.Join(want, "\n"))
			}
			if hadError != wantError {
				t.Errorf("hadError = %v, want %v", hadError, wantError)
			}
		})
	}
}

func splitLines(data []byte) []string {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
