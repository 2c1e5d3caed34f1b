package taskstore

import (
	"sort"
	"strconv"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore/backend"
)

// sortEntriesByKey gives List a stable iteration order so that a cursor
// (a plain offset) remains meaningful across pages issued against the
// same snapshot-ish listing. The in-memory backend returns entries in
// map order, which Go does not guarantee stable across calls.
func sortEntriesByKey(entries []backend.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

func encodeCursor(offset int) string {
	return strconv.Itoa(offset)
}

func decodeCursor(cursor string) (int, error) {
	return strconv.Atoi(cursor)
}
