package reconcile

import (
	"context"
	"slices"
	"sort"

	"github.com/roach88/contactgraph/internal/contact"
)

// Resolve returns the component connected to o, oldest first.
//
// Seeds are contacts matching o's email or phone exactly. Each seed
// contributes its own id and its linked id as anchors, and every anchor is
// expanded one hop. One hop suffices while every secondary links directly to
// its component's current primary.
//
// An empty result means o is novel.
func Resolve(ctx context.Context, s contact.Store, o contact.Observation) ([]contact.Contact, error) {
	seeds, err := s.LookupByEmailOrPhone(ctx, o.Email, o.PhoneNumber)
	if err != nil {
		return nil, storeError("resolve", err)
	}
	if len(seeds) == 0 {
		return []contact.Contact{}, nil
	}

	anchors := make([]int64, 0, 2*len(seeds))
	for _, seed := range seeds {
		anchors = append(anchors, seed.ID)
		if seed.LinkedID != 0 {
			anchors = append(anchors, seed.LinkedID)
		}
	}

	component, err := Expand(ctx, s, anchors)
	if err != nil {
		return nil, err
	}
	if len(component) == 0 {
		return nil, invariantError("resolve", "%d seed contacts expanded to an empty component", len(seeds))
	}
	return component, nil
}

// Expand fetches the component of every anchor id, merges the results,
// drops duplicates and sorts oldest first.
func Expand(ctx context.Context, s contact.Store, anchors []int64) ([]contact.Contact, error) {
	seen := make(map[int64]bool, len(anchors))
	fetched := make(map[int64]bool, len(anchors))
	component := []contact.Contact{}

	for _, anchor := range anchors {
		if fetched[anchor] {
			continue
		}
		fetched[anchor] = true

		members, err := s.LookupComponent(ctx, anchor)
		if err != nil {
			return nil, storeError("expand", err)
		}
		for _, m := range members {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			component = append(component, m)
		}
	}

	sort.SliceStable(component, func(i, j int) bool {
		return contact.Older(component[i], component[j])
	})
	return component, nil
}

// unlockedIdentities returns the identities named by component, as primary
// ids in ascending order, that are not in locked. A primary names itself and
// a secondary names the primary it links to.
func unlockedIdentities(component []contact.Contact, locked map[int64]bool) []int64 {
	var ids []int64
	for _, c := range component {
		id := c.ID
		if !c.IsPrimary() {
			id = c.LinkedID
		}
		if id != 0 && !locked[id] && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
