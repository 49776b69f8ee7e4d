package ragcache

import "testing"

func buildTestHierarchy(t *testing.T, docID string) *Hierarchy {
	t.Helper()
	parents := []ParentChunk{
		{ID: docID + "-p0", DocumentID: docID, Text: "alpha beta", OrderIndex: 0, ChildIDs: []string{docID + "-c0", docID + "-c1"}},
		{ID: docID + "-p1", DocumentID: docID, Text: "gamma delta", OrderIndex: 1, ChildIDs: []string{docID + "-c2"}},
	}
	children := []ChildChunk{
		{ID: docID + "-c0", ParentID: docID + "-p0", DocumentID: docID, Text: "alpha"},
		{ID: docID + "-c1", ParentID: docID + "-p0", DocumentID: docID, Text: "beta"},
		{ID: docID + "-c2", ParentID: docID + "-p1", DocumentID: docID, Text: "gamma"},
	}
	h, err := NewHierarchy(docID, parents, children)
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}
	return h
}

func TestNewHierarchyRejectsBrokenLinks(t *testing.T) {
	parents := []ParentChunk{{ID: "p0", DocumentID: "d", ChildIDs: []string{"c0"}}}

	t.Run("child references unknown parent", func(t *testing.T) {
		children := []ChildChunk{{ID: "c0", ParentID: "missing", DocumentID: "d"}}
		if _, err := NewHierarchy("d", parents, children); err == nil {
			t.Error("want error")
		}
	})
	t.Run("parent lists unknown child", func(t *testing.T) {
		children := []ChildChunk{{ID: "other", ParentID: "p0", DocumentID: "d"}}
		if _, err := NewHierarchy("d", parents, children); err == nil {
			t.Error("want error")
		}
	})
	t.Run("duplicate child id", func(t *testing.T) {
		children := []ChildChunk{
			{ID: "c0", ParentID: "p0", DocumentID: "d"},
			{ID: "c0", ParentID: "p0", DocumentID: "d"},
		}
		if _, err := NewHierarchy("d", parents, children); err == nil {
			t.Error("want error")
		}
	})
	t.Run("parent from another document", func(t *testing.T) {
		bad := []ParentChunk{{ID: "p0", DocumentID: "elsewhere", ChildIDs: nil}}
		if _, err := NewHierarchy("d", bad, nil); err == nil {
			t.Error("want error")
		}
	})
}

func TestTablePublishAndLookup(t *testing.T) {
	table := NewHierarchyTable()
	table.Publish(buildTestHierarchy(t, "doc1"))

	c, ok := table.Child("doc1-c1")
	if !ok || c.Text != "beta" {
		t.Fatalf("Child = %+v, %v", c, ok)
	}
	p, ok := table.ParentOf("doc1-c1")
	if !ok || p.ID != "doc1-p0" {
		t.Fatalf("ParentOf = %+v, %v", p, ok)
	}
	if _, ok := table.Child("nope"); ok {
		t.Error("lookup hit for unknown child")
	}
}

func TestTableRepublishReplacesWholeDocument(t *testing.T) {
	table := NewHierarchyTable()
	table.Publish(buildTestHierarchy(t, "doc1"))

	// A rebuilt document with different chunk IDs replaces the old build
	// atomically; old IDs stop resolving.
	parents := []ParentChunk{{ID: "v2-p0", DocumentID: "doc1", ChildIDs: []string{"v2-c0"}}}
	children := []ChildChunk{{ID: "v2-c0", ParentID: "v2-p0", DocumentID: "doc1"}}
	h, err := NewHierarchy("doc1", parents, children)
	if err != nil {
		t.Fatal(err)
	}
	table.Publish(h)

	if _, ok := table.Child("doc1-c0"); ok {
		t.Error("old child still resolves after republish")
	}
	if _, ok := table.Child("v2-c0"); !ok {
		t.Error("new child does not resolve")
	}
	docs, parentsN, childrenN := table.Stats()
	if docs != 1 || parentsN != 1 || childrenN != 1 {
		t.Errorf("stats = %d/%d/%d, want 1/1/1", docs, parentsN, childrenN)
	}
}

func TestTableRemove(t *testing.T) {
	table := NewHierarchyTable()
	table.Publish(buildTestHierarchy(t, "doc1"))
	table.Remove("doc1")

	if _, ok := table.Child("doc1-c0"); ok {
		t.Error("child resolves after Remove")
	}
	if len(table.Documents()) != 0 {
		t.Error("document listed after Remove")
	}
}

func TestExpandParentsDedupesInRankOrder(t *testing.T) {
	table := NewHierarchyTable()
	table.Publish(buildTestHierarchy(t, "doc1"))

	// c2's parent first, then p0 via c0; the repeat c1 must not duplicate p0.
	parents := table.ExpandParents([]string{"doc1-c2", "doc1-c0", "doc1-c1", "unknown"})
	if len(parents) != 2 {
		t.Fatalf("got %d parents, want 2", len(parents))
	}
	if parents[0].ID != "doc1-p1" || parents[1].ID != "doc1-p0" {
		t.Errorf("order = %s, %s; want rank order preserved", parents[0].ID, parents[1].ID)
	}
}

func TestForEachChildEarlyStop(t *testing.T) {
	table := NewHierarchyTable()
	table.Publish(buildTestHierarchy(t, "doc1"))

	seen := 0
	table.ForEachChild(func(ChildChunk) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Errorf("visited %d children, want early stop at 2", seen)
	}
}
