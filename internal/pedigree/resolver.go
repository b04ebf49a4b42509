package pedigree

import (
	"strings"

	"herdbook/pkg/domain"
)

// Index resolves ancestor references against one population snapshot.
// Build it once per snapshot; it is read-only afterwards and safe for
// concurrent use.
type Index struct {
	byID   map[string]domain.Animal
	byName map[string]string
}

// NewIndex builds the id and lowercase-name lookups for a population.
// Names are not unique: on collision the later animal wins.
func NewIndex(population []domain.Animal) *Index {
	ix := &Index{
		byID:   make(map[string]domain.Animal, len(population)),
		byName: make(map[string]string, len(population)),
	}
	for _, a := range population {
		if a.ID == "" {
			continue
		}
		ix.byID[a.ID] = a
		if name := normalizeName(a.Name); name != "" {
			ix.byName[name] = a.ID
		}
	}
	return ix
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve maps a raw ancestor reference to a canonical animal ID. A blank
// reference or one that matches neither an ID nor a name reports false;
// that means "not linked to a record yet" and is not an error.
func (ix *Index) Resolve(ref string) (string, bool) {
	if ix == nil {
		return "", false
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if _, ok := ix.byID[ref]; ok {
		return ref, true
	}
	id, ok := ix.byName[strings.ToLower(ref)]
	return id, ok
}

// ResolveSlot resolves the reference held in one pedigree slot.
func (ix *Index) ResolveSlot(p domain.Pedigree, slot domain.Slot) (string, bool) {
	return ix.Resolve(p.Get(slot))
}

// ResolveGeneration resolves every slot of one generation into a set of IDs.
// Unresolved slots are skipped.
func (ix *Index) ResolveGeneration(p domain.Pedigree, generation int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, slot := range domain.GenerationSlots(generation) {
		if id, ok := ix.Resolve(p.Get(slot)); ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Animal returns the record for a canonical ID.
func (ix *Index) Animal(id string) (domain.Animal, bool) {
	if ix == nil {
		return domain.Animal{}, false
	}
	a, ok := ix.byID[id]
	return a, ok
}

// Len returns the number of indexed animals.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byID)
}

// ResolveAncestor is the one-shot form of Index.Resolve. Callers resolving
// many references against the same population should build an Index.
func ResolveAncestor(ref string, population []domain.Animal) (string, bool) {
	return NewIndex(population).Resolve(ref)
}
