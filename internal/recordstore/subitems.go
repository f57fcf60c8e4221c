package recordstore

// SubList describes one nested list owned by records of type T. Items of type S
// are addressed by a key of type K, never by position.
type SubList[T any, S any, K comparable] struct {
	Get     func(T) []S
	Set     func(T, []S) T
	Key     func(S) K
	Prepend bool // new items go to the front
}

// AddSubItem inserts item into the list of the record matching parentID. The item
// must already carry its key. A missing parent is a no-op.
func AddSubItem[T Record, S any, K comparable](c []T, parentID int64, l SubList[T, S, K], item S) ([]T, bool) {
	return Update(c, parentID, func(rec T) T {
		items := l.Get(rec)
		out := make([]S, 0, len(items)+1)
		if l.Prepend {
			out = append(out, item)
			out = append(out, items...)
		} else {
			out = append(out, items...)
			out = append(out, item)
		}
		return l.Set(rec, out)
	})
}

// RemoveSubItem drops the item keyed by key from the parent's list. It reports
// false when either the parent or the item is missing.
func RemoveSubItem[T Record, S any, K comparable](c []T, parentID int64, l SubList[T, S, K], key K) ([]T, bool) {
	parent, ok := Find(c, parentID)
	if !ok || indexOfKey(l, l.Get(parent), key) < 0 {
		return c, false
	}
	return Update(c, parentID, func(rec T) T {
		items := l.Get(rec)
		out := make([]S, 0, len(items))
		for _, it := range items {
			if l.Key(it) != key {
				out = append(out, it)
			}
		}
		return l.Set(rec, out)
	})
}

// UpdateSubItem replaces the keyed item with patch(item). Sibling items and other
// records are carried over unchanged.
func UpdateSubItem[T Record, S any, K comparable](c []T, parentID int64, l SubList[T, S, K], key K, patch func(S) S) ([]T, bool) {
	parent, ok := Find(c, parentID)
	if !ok {
		return c, false
	}
	i := indexOfKey(l, l.Get(parent), key)
	if i < 0 {
		return c, false
	}
	return Update(c, parentID, func(rec T) T {
		items := l.Get(rec)
		out := make([]S, len(items))
		copy(out, items)
		out[i] = patch(items[i])
		return l.Set(rec, out)
	})
}

// FindSubItem returns the keyed item from the parent's list.
func FindSubItem[T Record, S any, K comparable](c []T, parentID int64, l SubList[T, S, K], key K) (S, bool) {
	var zero S
	parent, ok := Find(c, parentID)
	if !ok {
		return zero, false
	}
	items := l.Get(parent)
	if i := indexOfKey(l, items, key); i >= 0 {
		return items[i], true
	}
	return zero, false
}

func indexOfKey[T any, S any, K comparable](l SubList[T, S, K], items []S, key K) int {
	for i, it := range items {
		if l.Key(it) == key {
			return i
		}
	}
	return -1
}
