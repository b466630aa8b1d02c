package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind = %q, want %q (err: %v)", got, kind, err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteOntoDirectory(t *testing.T) {
	s := tempVault(t)
	_ = s.Mkdir("dir.md")
	wantKind(t, s.Write("dir.md", []byte("x")), apperr.KindAlreadyExists)
}

func TestReadMissing(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("nope.md")
	wantKind(t, err, apperr.KindNotFound)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Error("errors.Is(ErrNotFound) = false")
	}
}

func TestReadDirectory(t *testing.T) {
	s := tempVault(t)
	_ = s.Mkdir("folder")
	_, err := s.Read("folder")
	wantKind(t, err, apperr.KindNotFound)
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
	wantKind(t, s.Delete("del.md"), apperr.KindNotFound)
}

func TestDeleteDirectory(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("full/keep.md", []byte("keep"))
	_ = s.Mkdir("empty")

	wantKind(t, s.Delete("full"), apperr.KindDirectoryNotEmpty)
	if ok, _ := s.IsFile("full/keep.md"); !ok {
		t.Error("non-empty delete must leave contents untouched")
	}

	if err := s.Delete("empty"); err != nil {
		t.Fatalf("Delete empty dir: %v", err)
	}
	if ok, _ := s.Exists("empty"); ok {
		t.Error("empty dir should be gone")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.md", []byte("data"))
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.md"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestMoveNeverOverwrites(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("b.md", []byte("b"))

	wantKind(t, s.Move("a.md", "b.md"), apperr.KindAlreadyExists)
	got, _ := s.Read("b.md")
	if string(got) != "b" {
		t.Errorf("destination overwritten: %q", got)
	}
	if ok, _ := s.IsFile("a.md"); !ok {
		t.Error("source should still exist")
	}
}

func TestMoveMissingSource(t *testing.T) {
	s := tempVault(t)
	wantKind(t, s.Move("ghost.md", "x.md"), apperr.KindNotFound)
}

func TestMoveOntoItselfMissingSource(t *testing.T) {
	s := tempVault(t)
	wantKind(t, s.Move("ghost.md", "ghost.md"), apperr.KindNotFound)

	_ = s.Write("here.md", []byte("x"))
	if err := s.Move("here.md", "here.md"); err != nil {
		t.Errorf("Move onto itself: %v", err)
	}
}

func TestCreate(t *testing.T) {
	s := tempVault(t)
	if err := s.Create("notes/deep/a.md", []byte("first")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := s.Read("notes/deep/a.md")
	if string(got) != "first" {
		t.Errorf("content = %q", got)
	}

	wantKind(t, s.Create("notes/deep/a.md", []byte("second")), apperr.KindAlreadyExists)
	got, _ = s.Read("notes/deep/a.md")
	if string(got) != "first" {
		t.Errorf("existing file overwritten: %q", got)
	}
	wantKind(t, s.Create("notes", []byte("x")), apperr.KindAlreadyExists)
	wantKind(t, s.Create("notes/deep/a.md/b.md", []byte("x")), apperr.KindParentNotFound)
}

func TestConcurrentCreateHasOneWinner(t *testing.T) {
	s := tempVault(t)
	for round := 0; round < 50; round++ {
		p := fmt.Sprintf("race/n%d.md", round)
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   []string
			others int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				content := fmt.Sprintf("writer-%d", i)
				err := s.Create(p, []byte(content))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins = append(wins, content)
				case apperr.KindOf(err) == apperr.KindAlreadyExists:
					others++
				default:
					t.Errorf("Create: %v", err)
				}
			}()
		}
		wg.Wait()

		if len(wins) != 1 || others != 7 {
			t.Fatalf("round %d: %d winners, %d already_exists", round, len(wins), others)
		}
		got, _ := s.Read(p)
		if string(got) != wins[0] {
			t.Fatalf("round %d: content = %q, winner wrote %q", round, got, wins[0])
		}
	}
}

func TestFailedCommitRemovesCreatedParents(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("keep/a.md", []byte("a"))

	abs, norm, err := s.safePath("create", "keep/new/deeper/b.md")
	if err != nil {
		t.Fatal(err)
	}
	failRename := func(string, string) error { return fs.ErrExist }
	wantKind(t, s.commit("create", abs, norm, []byte("b"), 0o644, failRename), apperr.KindAlreadyExists)

	if ok, _ := s.Exists("keep/new"); ok {
		t.Error("parent directories created for the failed write were left behind")
	}
	entries, _ := s.List("keep")
	if len(entries) != 1 || entries[0].Name != "a.md" {
		t.Errorf("keep = %+v", entries)
	}
	raw, _ := os.ReadDir(filepath.Join(s.Root(), "keep"))
	if len(raw) != 1 {
		t.Errorf("stray entries on disk: %d", len(raw))
	}
}

func TestMkdirParentsReportsOnlyNewDirs(t *testing.T) {
	s := tempVault(t)
	_ = s.Mkdir("a")

	created, err := s.mkdirParents(filepath.Join(s.Root(), "a", "b", "c", "x.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(s.Root(), "a", "b", "c"), filepath.Join(s.Root(), "a", "b")}
	if fmt.Sprint(created) != fmt.Sprint(want) {
		t.Errorf("created = %v, want %v", created, want)
	}
	removeDirs(created)
	if ok, _ := s.Exists("a/b"); ok {
		t.Error("a/b not removed")
	}
	if ok, _ := s.IsDir("a"); !ok {
		t.Error("pre-existing a removed")
	}
}

func TestMoveDirectory(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("proj/a.md", []byte("a"))
	_ = s.Write("proj/sub/b.md", []byte("b"))

	if err := s.Move("proj", "archive/proj"); err != nil {
		t.Fatalf("Move dir: %v", err)
	}
	for _, p := range []string{"archive/proj/a.md", "archive/proj/sub/b.md"} {
		if ok, _ := s.IsFile(p); !ok {
			t.Errorf("%s missing after move", p)
		}
	}
	if ok, _ := s.Exists("proj"); ok {
		t.Error("old dir should be gone")
	}
}

func TestMoveDirectoryIntoItself(t *testing.T) {
	s := tempVault(t)
	_ = s.Mkdir("a/b")
	wantKind(t, s.Move("a", "a/b/c"), apperr.KindInvalidMove)
}

func TestMkdir(t *testing.T) {
	s := tempVault(t)
	if err := s.Mkdir("x/y/z"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if ok, _ := s.IsDir("x/y/z"); !ok {
		t.Error("x/y/z should be a directory")
	}
	wantKind(t, s.Mkdir("x/y"), apperr.KindAlreadyExists)

	_ = s.Write("file.md", []byte("x"))
	wantKind(t, s.Mkdir("file.md/child"), apperr.KindParentNotFound)
}

func TestExistsIsDirIsFile(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("d/f.md", []byte("x"))

	if ok, err := s.Exists("d"); err != nil || !ok {
		t.Errorf("Exists(d) = %v, %v", ok, err)
	}
	if ok, err := s.Exists("missing"); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
	if ok, _ := s.IsDir("d"); !ok {
		t.Error("IsDir(d) = false")
	}
	if ok, _ := s.IsDir("d/f.md"); ok {
		t.Error("IsDir(file) = true")
	}
	if ok, _ := s.IsFile("d/f.md"); !ok {
		t.Error("IsFile(file) = false")
	}
	if ok, _ := s.IsFile("d"); ok {
		t.Error("IsFile(dir) = true")
	}
	if _, err := s.Exists("../x"); err == nil {
		t.Error("Exists should reject traversal")
	}
}

func TestStat(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("s.md", []byte("12345"))
	info, err := s.Stat("s.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 5 || info.IsDir || info.ModTime.IsZero() {
		t.Errorf("Stat = %+v", info)
	}
	_, err = s.Stat("nope")
	wantKind(t, err, apperr.KindNotFound)
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("sub/c.md", []byte("c"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, e := range items {
		got = append(got, fmt.Sprintf("%s:%s", e.Type, e.Path))
	}
	want := "note:a.md,note:b.md,file:readme.txt,folder:sub"
	if strings.Join(got, ",") != want {
		t.Errorf("List = %v, want %s", got, want)
	}

	items, err = s.List("sub")
	if err != nil || len(items) != 1 || items[0].Path != "sub/c.md" {
		t.Errorf("List(sub) = %v, %v", items, err)
	}

	_, err = s.List("missing")
	wantKind(t, err, apperr.KindNotFound)
}

func TestListSkipsTempFiles(t *testing.T) {
	s := tempVault(t)
	_ = os.WriteFile(filepath.Join(s.Root(), TempPrefix+"123"), []byte("x"), 0o644)
	items, _ := s.List("")
	if len(items) != 0 {
		t.Errorf("temp file listed: %v", items)
	}
}

func TestWalk(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a/x.md", []byte("x"))
	_ = s.Write("a/b/y.md", []byte("y"))
	_ = s.Write("skip/z.md", []byte("z"))
	_ = s.Write("top.md", []byte("t"))

	var seen []string
	err := s.Walk("", func(e models.Entry) error {
		seen = append(seen, e.Path)
		if e.Path == "skip" {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := "a,a/b,a/b/y.md,a/x.md,skip,top.md"
	if strings.Join(seen, ",") != want {
		t.Errorf("Walk = %v, want %s", seen, want)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
		"a/../b.md",
	}
	for _, p := range cases {
		if _, err := s.Read(p); apperr.KindOf(err) != apperr.KindInvalidPath {
			t.Errorf("expected invalid path for read %q, got %v", p, err)
		}
		if err := s.Write(p, []byte("x")); apperr.KindOf(err) != apperr.KindInvalidPath {
			t.Errorf("expected invalid path for write %q, got %v", p, err)
		}
		if err := s.Move("x.md", p); apperr.KindOf(err) != apperr.KindInvalidPath {
			t.Errorf("expected invalid path for move to %q, got %v", p, err)
		}
	}
}

func TestSymlinkEscapeBlocked(t *testing.T) {
	s := tempVault(t)
	outside := t.TempDir()
	_ = os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644)
	if err := os.Symlink(outside, filepath.Join(s.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := s.Read("link/secret.md")
	wantKind(t, err, apperr.KindInvalidPath)
	wantKind(t, s.Write("link/new.md", []byte("x")), apperr.KindInvalidPath)

	items, _ := s.List("")
	if len(items) != 0 {
		t.Errorf("symlink should not be listed: %v", items)
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("atomic.md", original)

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestConcurrentWritersNeverInterleave(t *testing.T) {
	s := tempVault(t)
	a := []byte(strings.Repeat("A", 256<<10))
	b := []byte(strings.Repeat("B", 256<<10))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Write("race.md", a) }()
		go func() { defer wg.Done(); _ = s.Write("race.md", b) }()
	}
	wg.Wait()

	got, err := s.Read("race.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(a) && string(got) != string(b) {
		t.Errorf("torn write: len=%d", len(got))
	}
}

func TestWritePreservesMode(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("m.md", []byte("x"))
	abs := filepath.Join(s.Root(), "m.md")
	_ = os.Chmod(abs, 0o600)
	_ = s.Write("m.md", []byte("y"))
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/quire-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "quire-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
