package domain

import (
	"fmt"
	"sort"
)

// SortVersionsDescending orders group members newest version first.
func SortVersionsDescending(docs []Document) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VersionNumber > out[j].VersionNumber
	})
	return out
}

// CurrentVersion returns the single current member of a version group.
// A non-empty group with zero or several current members violates the chain invariant.
func CurrentVersion(docs []Document) (*Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	var current *Document
	for i := range docs {
		if !docs[i].IsCurrentVersion {
			continue
		}
		if current != nil {
			return nil, fmt.Errorf("%w: documents %s and %s both marked current", ErrVersionConflict, current.ID, docs[i].ID)
		}
		current = &docs[i]
	}
	if current == nil {
		return nil, fmt.Errorf("%w: group has no current version", ErrVersionConflict)
	}
	return current, nil
}

// CheckVersionNumbers verifies version numbers are positive and unique within the group.
func CheckVersionNumbers(docs []Document) error {
	seen := make(map[int]string, len(docs))
	for _, doc := range docs {
		if doc.VersionNumber <= 0 {
			return fmt.Errorf("%w: document %s has version number %d", ErrVersionConflict, doc.ID, doc.VersionNumber)
		}
		if other, ok := seen[doc.VersionNumber]; ok {
			return fmt.Errorf("%w: documents %s and %s share version %d", ErrVersionConflict, other, doc.ID, doc.VersionNumber)
		}
		seen[doc.VersionNumber] = doc.ID
	}
	return nil
}

func FindByVersionNumber(docs []Document, number int) (*Document, bool) {
	for i := range docs {
		if docs[i].VersionNumber == number {
			return &docs[i], true
		}
	}
	return nil, false
}

func FindByID(docs []Document, id string) (*Document, bool) {
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i], true
		}
	}
	return nil, false
}
