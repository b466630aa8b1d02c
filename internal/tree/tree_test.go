package tree

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
)

func testTree(t *testing.T, opts ...Option) (*Tree, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(store, opts...), store
}

func flatten(nodes []*models.TreeNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, string(n.Type[0])+":"+n.Path)
		out = append(out, flatten(n.Children)...)
	}
	return out
}

func TestListOrder(t *testing.T) {
	tr, store := testTree(t)
	_ = store.Write("zeta.md", []byte("z"))
	_ = store.Write("Alpha.md", []byte("a"))
	_ = store.Write("beta/one.md", []byte("1"))
	_ = store.Write("Beta2/two.md", []byte("2"))
	_ = store.Write("image.png", []byte("png"))
	_ = store.Mkdir("empty")

	nodes, err := tr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := strings.Join(flatten(nodes), ",")
	want := "f:beta,n:beta/one.md,f:Beta2,n:Beta2/two.md,f:empty,n:Alpha.md,n:zeta.md"
	if got != want {
		t.Errorf("order:\n got  %s\n want %s", got, want)
	}

	empty := tr.Find(context.Background(), "empty")
	if empty == nil || empty.Children == nil {
		t.Error("empty folder should have a non-nil children slice")
	}
}

func TestListStableAcrossRebuilds(t *testing.T) {
	tr, store := testTree(t)
	for _, p := range []string{"b.md", "B.md", "a/x.md", "A/y.md"} {
		_ = store.Write(p, []byte("x"))
	}
	first, _ := tr.List(context.Background())
	want := strings.Join(flatten(first), ",")
	for i := 0; i < 5; i++ {
		tr.Invalidate()
		again, _ := tr.List(context.Background())
		if got := strings.Join(flatten(again), ","); got != want {
			t.Fatalf("rebuild %d differs: %s vs %s", i, got, want)
		}
	}
}

func TestHiddenEntries(t *testing.T) {
	tr, store := testTree(t)
	_ = store.Write(".git/config.md", []byte("x"))
	_ = store.Write(".draft.md", []byte("x"))
	_ = store.Write("visible.md", []byte("x"))

	nodes, _ := tr.List(context.Background())
	if len(nodes) != 1 || nodes[0].Path != "visible.md" {
		t.Errorf("hidden entries listed: %v", flatten(nodes))
	}

	shown := New(store, WithHidden(true))
	nodes, _ = shown.List(context.Background())
	if len(flatten(nodes)) != 4 {
		t.Errorf("WithHidden: %v", flatten(nodes))
	}
}

func TestMemoizedUntilInvalidated(t *testing.T) {
	tr, store := testTree(t)
	ctx := context.Background()
	_ = store.Write("one.md", []byte("1"))
	if nodes, _ := tr.List(ctx); len(nodes) != 1 {
		t.Fatalf("initial len = %d", len(nodes))
	}

	_ = store.Write("two.md", []byte("2"))
	if nodes, _ := tr.List(ctx); len(nodes) != 1 {
		t.Errorf("memoized tree should not see two.md before Invalidate")
	}

	tr.Invalidate()
	if nodes, _ := tr.List(ctx); len(nodes) != 2 {
		t.Errorf("after Invalidate len = %d, want 2", len(nodes))
	}
}

func TestFind(t *testing.T) {
	tr, store := testTree(t)
	ctx := context.Background()
	_ = store.Write("a/b/c.md", []byte("x"))

	n := tr.Find(ctx, "a/b")
	if n == nil || n.Type != models.TypeFolder || n.Name != "b" {
		t.Fatalf("Find(a/b) = %+v", n)
	}
	n = tr.Find(ctx, "a/b/c.md")
	if n == nil || n.Type != models.TypeNote {
		t.Fatalf("Find(a/b/c.md) = %+v", n)
	}
	for _, p := range []string{"a/b/missing.md", "nope", "../a", ""} {
		if n := tr.Find(ctx, p); n != nil {
			t.Errorf("Find(%q) = %+v, want nil", p, n)
		}
	}
}

func TestChildren(t *testing.T) {
	tr, store := testTree(t)
	ctx := context.Background()
	_ = store.Write("dir/a.md", []byte("a"))
	_ = store.Write("dir/b.md", []byte("b"))
	_ = store.Write("note.md", []byte("n"))

	if got := tr.Children(ctx, "dir"); len(got) != 2 {
		t.Errorf("Children(dir) len = %d", len(got))
	}
	if got := tr.Children(ctx, ""); len(got) != 2 {
		t.Errorf("Children(root) len = %d", len(got))
	}
	for _, p := range []string{"missing", "note.md", "../x"} {
		got := tr.Children(ctx, p)
		if got == nil || len(got) != 0 {
			t.Errorf("Children(%q) = %v, want empty non-nil", p, got)
		}
	}
}

func TestConcurrentListAndInvalidate(t *testing.T) {
	tr, store := testTree(t)
	ctx := context.Background()
	for _, p := range []string{"a.md", "b/c.md", "d/e/f.md"} {
		_ = store.Write(p, []byte("x"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := tr.List(ctx); err != nil {
				t.Errorf("List: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			tr.Invalidate()
		}()
	}
	wg.Wait()

	tr.Invalidate()
	nodes, _ := tr.List(ctx)
	if len(flatten(nodes)) != 6 {
		t.Errorf("final tree = %v", flatten(nodes))
	}
}

func TestListCancelled(t *testing.T) {
	tr, _ := testTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.List(ctx); err == nil {
		t.Error("expected context error")
	}
}
