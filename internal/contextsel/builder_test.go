package contextsel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acttech/autoupdater/internal/scan"
)

func TestTokenizeGoal(t *testing.T) {
	toks := TokenizeGoal("Please add a /health endpoint to web_app.py and update the README")
	assert.Contains(t, toks, "health")
	assert.Contains(t, toks, "endpoint")
	assert.Contains(t, toks, "web_app.py")
	assert.Contains(t, toks, "readme")
	// Stopwords and short words are dropped.
	assert.NotContains(t, toks, "add")
	assert.NotContains(t, toks, "the")
	assert.NotContains(t, toks, "to")

	// Duplicates removed, order preserved.
	toks = TokenizeGoal("health health endpoint")
	assert.Equal(t, []string{"health", "endpoint"}, toks)
}

func TestScorePathPreferences(t *testing.T) {
	none := []string{}
	assert.Greater(t, scorePath("web_app.py", none), scorePath("src/helpers.py", none))
	assert.Greater(t, scorePath("src/api/routes.py", none), scorePath("tests/test_routes.py", none))
	assert.Greater(t, scorePath("billing/invoice.py", []string{"invoice"}), scorePath("billing/other.py", []string{"invoice"}))
}

func TestScoreContent(t *testing.T) {
	text := "def handle_invoice():\n    return invoice_total()\n"
	assert.Greater(t, scoreContent(text, []string{"invoice"}), 0.0)
	assert.Zero(t, scoreContent(text, nil))
	assert.Zero(t, scoreContent("", []string{"invoice"}))
	// Boundary matches outweigh substring-only hits.
	assert.Greater(t,
		scoreContent("invoice\n", []string{"invoice"}),
		scoreContent("reinvoicedx\n", []string{"invoice"}))
}

func TestDetectEntrypoints(t *testing.T) {
	files := []string{"lib/util.py", "web_app.py", "src/app/app.py", "main.py"}
	eps := detectEntrypoints(files)
	require.NotEmpty(t, eps)
	assert.Equal(t, "web_app.py", eps[0])
	assert.Contains(t, eps, "main.py")
	assert.Contains(t, eps, "src/app/app.py")
}

func TestResolvePyModule(t *testing.T) {
	all := map[string]bool{"pkg/mod.py": true, "pkg/sub/__init__.py": true}
	assert.Equal(t, []string{"pkg/mod.py"}, resolvePyModule("pkg.mod", all))
	assert.Equal(t, []string{"pkg/sub/__init__.py"}, resolvePyModule("pkg.sub", all))
	assert.Empty(t, resolvePyModule("os", all))
	assert.Empty(t, resolvePyModule("", all))
}

func TestResolveJSImport(t *testing.T) {
	all := map[string]bool{"src/utils.ts": true, "src/lib/index.js": true}
	assert.Equal(t, []string{"src/utils.ts"}, resolveJSImport("./utils", "src/app.ts", all))
	assert.Equal(t, []string{"src/lib/index.js"}, resolveJSImport("./lib", "src/app.ts", all))
	// npm packages are not repo files.
	assert.Empty(t, resolveJSImport("react", "src/app.ts", all))
}

// fixtureRepo builds a small python project on disk and returns its snapshot.
func fixtureRepo(t *testing.T) (string, *scan.Snapshot) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"web_app.py":       "from helpers import greet\n\n@app.get('/')\ndef index():\n    return greet()\n",
		"helpers.py":       "def greet():\n    return 'hi'\n",
		"requirements.txt": "fastapi\n",
		"notes.md":         "# notes about billing\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	sc := scan.New(scan.Options{
		IgnoreDirs: map[string]bool{".git": true},
		TextExts:   map[string]bool{".py": true, ".md": true, ".txt": true},
	})
	snap, err := sc.Scan(context.Background(), dir)
	require.NoError(t, err)
	return dir, snap
}

func testBuilder(dir string) *Builder {
	return &Builder{
		RepoRoot:        dir,
		TextExts:        map[string]bool{".py": true, ".md": true, ".txt": true},
		MaxFiles:        10,
		MaxCharsPerFile: 6000,
		MaxTotalChars:   26000,
		ExpandNeighbors: true,
	}
}

func TestChooseFilesPrioritizesChanged(t *testing.T) {
	dir, snap := fixtureRepo(t)
	diff := &scan.Diff{Modified: []string{"notes.md"}}

	chosen := testBuilder(dir).ChooseFiles(snap, diff, "document billing")
	require.NotEmpty(t, chosen)
	assert.Equal(t, "notes.md", chosen[0])
	assert.Contains(t, chosen, "web_app.py")
}

func TestBuildContextDocument(t *testing.T) {
	dir, snap := fixtureRepo(t)
	diff := &scan.Diff{}

	text, chosen := testBuilder(dir).Build(snap, diff, "add a farewell to greet")

	assert.Contains(t, chosen, "web_app.py")
	// Neighbor expansion pulls in the imported helper.
	assert.Contains(t, chosen, "helpers.py")

	assert.Contains(t, text, "=== USER GOAL ===")
	assert.Contains(t, text, "add a farewell to greet")
	assert.Contains(t, text, "=== LIKELY ENTRYPOINTS (how to run) ===")
	assert.Contains(t, text, "web_app.py")
	assert.Contains(t, text, "--- FILE: web_app.py")
	assert.Contains(t, text, "def greet():")
}

func TestBuildRespectsTotalBudget(t *testing.T) {
	dir, snap := fixtureRepo(t)
	b := testBuilder(dir)
	b.MaxTotalChars = 80 // force the budget cut

	text, _ := b.Build(snap, &scan.Diff{}, "anything")
	assert.Contains(t, text, "[CONTEXT BUDGET HIT")
	assert.LessOrEqual(t, strings.Count(text, "--- FILE:"), 1)
}

func TestBuildEmptyGoal(t *testing.T) {
	dir, snap := fixtureRepo(t)
	text, _ := testBuilder(dir).Build(snap, &scan.Diff{}, "   ")
	assert.Contains(t, text, "(empty)")
}

func TestScoreContentCountsAdjacentHits(t *testing.T) {
	one := scoreContent("db", []string{"db"})
	two := scoreContent("db,db", []string{"db"})
	assert.InDelta(t, 2*one, two, 0.001)

	// Embedded in a longer identifier: only the weaker substring weight.
	embedded := scoreContent("mydb_helper", []string{"db"})
	assert.Less(t, embedded, one)
}

func TestCountWordHits(t *testing.T) {
	assert.Equal(t, 2, countWordHits("a,a", "a", 10))
	assert.Equal(t, 1, countWordHits("a", "a", 10))
	assert.Equal(t, 0, countWordHits("bab", "a", 10))
	assert.Equal(t, 3, countWordHits("a a a a", "a", 3))
}
