// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package store

// FindByID returns the record with the given id and its index, or
// false when no record matches. Linear scan; workspace collections are
// small enough that an index would be overhead, not optimization.
func FindByID[T Record](a *Array[T], id string) (T, int, bool) {
	for i, item := range a.items {
		if item.RecordID() == id {
			return item, i, true
		}
	}
	var zero T
	return zero, -1, false
}

// UpdateByID replaces the record with the given id by the result of
// update, keeping its position. The replacement is a delete plus an
// insert at the same index inside one transaction, so observers see a
// single commit and never a state with the record absent.
//
// Returns false without error when no record has the id: the record
// may have been removed by a concurrently merged update, and callers
// treat that as the record's lifecycle having moved on, not a fault.
func UpdateByID[T Record](a *Array[T], id string, update func(T) T) (bool, error) {
	found := false
	err := a.doc.Transact(func() error {
		item, index, ok := FindByID(a, id)
		if !ok {
			return nil
		}
		found = true
		if err := a.Delete(index, 1); err != nil {
			return err
		}
		return a.Insert(index, update(item))
	})
	return found, err
}

// RemoveByID deletes the record with the given id. Returns false
// without error when no record has the id.
func RemoveByID[T Record](a *Array[T], id string) (bool, error) {
	_, index, ok := FindByID(a, id)
	if !ok {
		return false, nil
	}
	return true, a.Delete(index, 1)
}
