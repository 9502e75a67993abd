// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package view maintains derived, query-oriented projections of the
// shared request collection. The index is a read model: it never
// writes to shared state, and rebuilding it from the same snapshot
// always yields the same answers.
package view

import (
	"sort"
	"strings"

	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/store"
)

// Index holds request records with secondary indexes for the lookups
// listings do constantly. Not safe for concurrent use; like the
// document it mirrors, it lives on a single-threaded replica.
type Index struct {
	byID       map[string]schema.RequestContent
	byStatus   map[schema.RequestStatus]map[string]struct{}
	byAssignee map[string]map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byID:       make(map[string]schema.RequestContent),
		byStatus:   make(map[schema.RequestStatus]map[string]struct{}),
		byAssignee: make(map[string]map[string]struct{}),
	}
}

// Put inserts or replaces a record.
func (ix *Index) Put(record schema.RequestContent) {
	ix.Remove(record.ID)
	ix.byID[record.ID] = record
	addToBucket(ix.byStatus, record.Status, record.ID)
	if record.AssignedTo != "" {
		addToBucket(ix.byAssignee, record.AssignedTo, record.ID)
	}
}

// Remove deletes a record. Removing an unknown id is a no-op.
func (ix *Index) Remove(id string) {
	record, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)
	dropFromBucket(ix.byStatus, record.Status, id)
	if record.AssignedTo != "" {
		dropFromBucket(ix.byAssignee, record.AssignedTo, id)
	}
}

// Get returns the indexed record with the given id.
func (ix *Index) Get(id string) (schema.RequestContent, bool) {
	record, ok := ix.byID[id]
	return record, ok
}

// Len returns the number of indexed records.
func (ix *Index) Len() int { return len(ix.byID) }

// Rebuild replaces the index contents with the given snapshot.
func (ix *Index) Rebuild(records []schema.RequestContent) {
	ix.byID = make(map[string]schema.RequestContent, len(records))
	ix.byStatus = make(map[schema.RequestStatus]map[string]struct{})
	ix.byAssignee = make(map[string]map[string]struct{})
	for _, record := range records {
		ix.Put(record)
	}
}

// Track attaches the index to a document: every commit touching the
// requests collection triggers a rebuild from the array snapshot.
// Returns the observer handle for detaching. Workspace collections are
// small; rescanning beats decoding op payloads for correctness.
func (ix *Index) Track(doc *store.Doc, requests *store.Array[schema.RequestContent]) store.ObserverHandle {
	ix.Rebuild(requests.Snapshot())
	return doc.Observe(func(commit store.Commit) {
		for _, op := range commit.Ops {
			if op.Collection == requests.Name() {
				ix.Rebuild(requests.Snapshot())
				return
			}
		}
	})
}

func addToBucket[K comparable](buckets map[K]map[string]struct{}, key K, id string) {
	bucket, ok := buckets[key]
	if !ok {
		bucket = make(map[string]struct{})
		buckets[key] = bucket
	}
	bucket[id] = struct{}{}
}

func dropFromBucket[K comparable](buckets map[K]map[string]struct{}, key K, id string) {
	bucket, ok := buckets[key]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(buckets, key)
	}
}

// Filter selects records; zero-valued fields do not constrain. All set
// fields must match (AND semantics).
type Filter struct {
	// Status keeps records in any of the listed statuses.
	Status []schema.RequestStatus

	// AssignedTo keeps records assigned to this identity.
	AssignedTo string

	// RequestedBy keeps records filed by this identity.
	RequestedBy string

	// SystemID keeps records scoped to this system.
	SystemID string

	// Urgent, when non-nil, keeps records whose urgent flag matches.
	Urgent *bool

	// Search keeps records whose item name, city, or notes contain the
	// term, case-insensitively.
	Search string
}

func (f Filter) matches(record schema.RequestContent) bool {
	if len(f.Status) > 0 {
		found := false
		for _, status := range f.Status {
			if record.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.AssignedTo != "" && record.AssignedTo != f.AssignedTo {
		return false
	}
	if f.RequestedBy != "" && record.RequestedBy != f.RequestedBy {
		return false
	}
	if f.SystemID != "" && record.SystemID != f.SystemID {
		return false
	}
	if f.Urgent != nil && record.Urgent != *f.Urgent {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(record.ItemName), term) &&
			!strings.Contains(strings.ToLower(record.City), term) &&
			!strings.Contains(strings.ToLower(record.Notes), term) {
			return false
		}
	}
	return true
}

// SortOrder names a listing order.
type SortOrder string

const (
	// SortNewest orders by request time, newest first.
	SortNewest SortOrder = "newest"

	// SortOldest orders by request time, oldest first.
	SortOldest SortOrder = "oldest"

	// SortUrgentFirst puts urgent records ahead, newest first within
	// each group.
	SortUrgentFirst SortOrder = "urgent_first"
)

// Page bounds a result listing. A zero Limit means no bound.
type Page struct {
	Offset int
	Limit  int
}

// Filter returns the records matching f in the given order, cut to the
// page. The result is a copy.
func (ix *Index) Filter(f Filter, order SortOrder, page Page) []schema.RequestContent {
	var matched []schema.RequestContent
	for _, record := range ix.byID {
		if f.matches(record) {
			matched = append(matched, record)
		}
	}
	sortRecords(matched, order)

	if page.Offset >= len(matched) {
		return nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < len(matched) {
		matched = matched[:page.Limit]
	}
	return matched
}

// sortRecords orders records in place. RequestedAt is RFC 3339 so the
// lexicographic comparison is chronological; ids break ties so equal
// timestamps still list deterministically.
func sortRecords(records []schema.RequestContent, order SortOrder) {
	newer := func(a, b schema.RequestContent) bool {
		if a.RequestedAt != b.RequestedAt {
			return a.RequestedAt > b.RequestedAt
		}
		return a.ID > b.ID
	}
	switch order {
	case SortOldest:
		sort.Slice(records, func(i, j int) bool { return newer(records[j], records[i]) })
	case SortUrgentFirst:
		sort.Slice(records, func(i, j int) bool {
			if records[i].Urgent != records[j].Urgent {
				return records[i].Urgent
			}
			return newer(records[i], records[j])
		})
	default:
		sort.Slice(records, func(i, j int) bool { return newer(records[i], records[j]) })
	}
}

// Kanban buckets every record by status, each bucket newest first.
// Statuses with no records are absent from the map.
func (ix *Index) Kanban() map[schema.RequestStatus][]schema.RequestContent {
	buckets := make(map[schema.RequestStatus][]schema.RequestContent)
	for _, record := range ix.byID {
		buckets[record.Status] = append(buckets[record.Status], record)
	}
	for status := range buckets {
		sortRecords(buckets[status], SortNewest)
	}
	return buckets
}

// Stats summarizes the indexed records.
type Stats struct {
	Total    int
	ByStatus map[schema.RequestStatus]int

	// Active counts records between claim and delivery, exclusive of
	// terminal states.
	Active int

	// Urgent counts non-terminal urgent records.
	Urgent int
}

// Stats computes aggregate counts over the whole index.
func (ix *Index) Stats() Stats {
	stats := Stats{ByStatus: make(map[schema.RequestStatus]int)}
	for _, record := range ix.byID {
		stats.Total++
		stats.ByStatus[record.Status]++
		if !record.Status.IsTerminal() {
			if record.Status != schema.StatusOpen {
				stats.Active++
			}
			if record.Urgent {
				stats.Urgent++
			}
		}
	}
	return stats
}
