package ragcache

import (
	"fmt"
	"sync"
)

// Hierarchy is one document's completed parent/child build. Construct with
// NewHierarchy, which validates the links, then hand it to
// HierarchyTable.Publish. A published hierarchy is never mutated.
type Hierarchy struct {
	DocumentID string
	Parents    []ParentChunk
	Children   []ChildChunk

	parentIdx map[string]int
	childIdx  map[string]int
}

// NewHierarchy validates parent/child linkage and returns an immutable
// hierarchy. Every child must reference a parent created in the same build
// pass, and every parent's ChildIDs must resolve within the build.
func NewHierarchy(docID string, parents []ParentChunk, children []ChildChunk) (*Hierarchy, error) {
	h := &Hierarchy{
		DocumentID: docID,
		Parents:    parents,
		Children:   children,
		parentIdx:  make(map[string]int, len(parents)),
		childIdx:   make(map[string]int, len(children)),
	}
	for i, p := range parents {
		if p.DocumentID != docID {
			return nil, fmt.Errorf("parent %s: document %s, want %s", p.ID, p.DocumentID, docID)
		}
		if _, dup := h.parentIdx[p.ID]; dup {
			return nil, fmt.Errorf("duplicate parent id %s", p.ID)
		}
		h.parentIdx[p.ID] = i
	}
	for i, c := range children {
		if _, ok := h.parentIdx[c.ParentID]; !ok {
			return nil, fmt.Errorf("child %s: parent %s not in this build", c.ID, c.ParentID)
		}
		if _, dup := h.childIdx[c.ID]; dup {
			return nil, fmt.Errorf("duplicate child id %s", c.ID)
		}
		h.childIdx[c.ID] = i
	}
	for _, p := range parents {
		for _, cid := range p.ChildIDs {
			if _, ok := h.childIdx[cid]; !ok {
				return nil, fmt.Errorf("parent %s: child %s not in this build", p.ID, cid)
			}
		}
	}
	return h, nil
}

// Parent returns the parent chunk with the given ID.
func (h *Hierarchy) Parent(id string) (ParentChunk, bool) {
	i, ok := h.parentIdx[id]
	if !ok {
		return ParentChunk{}, false
	}
	return h.Parents[i], true
}

// Child returns the child chunk with the given ID.
func (h *Hierarchy) Child(id string) (ChildChunk, bool) {
	i, ok := h.childIdx[id]
	if !ok {
		return ChildChunk{}, false
	}
	return h.Children[i], true
}

// HierarchyTable owns the parent/child chunks of all ingested documents.
// Ingestion is single-writer: a completed build is swapped in whole via
// Publish, so query-time readers never observe a half-built hierarchy.
// Everything else is read-only and safe for concurrent use.
type HierarchyTable struct {
	mu        sync.RWMutex
	docs      map[string]*Hierarchy
	childDoc  map[string]string // child ID → document ID
	parentDoc map[string]string // parent ID → document ID
}

// NewHierarchyTable creates an empty table.
func NewHierarchyTable() *HierarchyTable {
	return &HierarchyTable{
		docs:      make(map[string]*Hierarchy),
		childDoc:  make(map[string]string),
		parentDoc: make(map[string]string),
	}
}

// Publish atomically replaces the hierarchy for h's document. Re-ingesting
// a document swaps out the old build in one step.
func (t *HierarchyTable) Publish(h *Hierarchy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.docs[h.DocumentID]; ok {
		for _, p := range old.Parents {
			delete(t.parentDoc, p.ID)
		}
		for _, c := range old.Children {
			delete(t.childDoc, c.ID)
		}
	}
	t.docs[h.DocumentID] = h
	for _, p := range h.Parents {
		t.parentDoc[p.ID] = h.DocumentID
	}
	for _, c := range h.Children {
		t.childDoc[c.ID] = h.DocumentID
	}
}

// Remove drops a document's hierarchy.
func (t *HierarchyTable) Remove(docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.docs[docID]
	if !ok {
		return
	}
	for _, p := range old.Parents {
		delete(t.parentDoc, p.ID)
	}
	for _, c := range old.Children {
		delete(t.childDoc, c.ID)
	}
	delete(t.docs, docID)
}

// Child looks up a child chunk by ID across all documents.
func (t *HierarchyTable) Child(id string) (ChildChunk, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	docID, ok := t.childDoc[id]
	if !ok {
		return ChildChunk{}, false
	}
	return t.docs[docID].Child(id)
}

// Parent looks up a parent chunk by ID across all documents.
func (t *HierarchyTable) Parent(id string) (ParentChunk, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	docID, ok := t.parentDoc[id]
	if !ok {
		return ParentChunk{}, false
	}
	return t.docs[docID].Parent(id)
}

// ParentOf resolves a child ID to its parent chunk.
func (t *HierarchyTable) ParentOf(childID string) (ParentChunk, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	docID, ok := t.childDoc[childID]
	if !ok {
		return ParentChunk{}, false
	}
	h := t.docs[docID]
	c, ok := h.Child(childID)
	if !ok {
		return ParentChunk{}, false
	}
	return h.Parent(c.ParentID)
}

// ExpandParents maps ranked child IDs to their parent chunks, deduplicated,
// rank order preserved (first child hit wins its parent's position).
// Unresolvable IDs are skipped.
func (t *HierarchyTable) ExpandParents(childIDs []string) []ParentChunk {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool, len(childIDs))
	var parents []ParentChunk
	for _, cid := range childIDs {
		docID, ok := t.childDoc[cid]
		if !ok {
			continue
		}
		h := t.docs[docID]
		c, ok := h.Child(cid)
		if !ok {
			continue
		}
		if seen[c.ParentID] {
			continue
		}
		p, ok := h.Parent(c.ParentID)
		if !ok {
			continue
		}
		seen[c.ParentID] = true
		parents = append(parents, p)
	}
	return parents
}

// ForEachChild calls fn for every child chunk until fn returns false.
// The callback must not block; it runs under the table's read lock.
func (t *HierarchyTable) ForEachChild(fn func(ChildChunk) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.docs {
		for _, c := range h.Children {
			if !fn(c) {
				return
			}
		}
	}
}

// Documents returns the IDs of all published documents.
func (t *HierarchyTable) Documents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns the number of documents, parents, and children held.
func (t *HierarchyTable) Stats() (docs, parents, children int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.docs {
		parents += len(h.Parents)
		children += len(h.Children)
	}
	return len(t.docs), parents, children
}
