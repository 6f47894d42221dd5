package market

import (
	"encoding/json"
	"sort"

	"github.com/google/btree"
)

// BookKey orders book entries by payment token first, then ascending price.
// Entries for different payment tokens are never price-comparable; the token
// component only groups them deterministically.
type BookKey struct {
	FTContract Address `json:"ft_contract,omitempty"`
	Price      Price   `json:"price"`
}

// BookEntry is one outstanding price commitment.
type BookEntry struct {
	BookKey
	Holder Address `json:"holder"`
}

func entryLess(a, b BookEntry) bool {
	if a.FTContract != b.FTContract {
		return a.FTContract < b.FTContract
	}
	return a.Price < b.Price
}

// Book is an ordered collection of price commitments keyed by
// (payment token, price). Iteration is deterministic ascending order.
type Book struct {
	tree *btree.BTreeG[BookEntry]
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{tree: btree.NewG(2, entryLess)}
}

// Len returns the number of entries.
func (b *Book) Len() int {
	if b == nil || b.tree == nil {
		return 0
	}
	return b.tree.Len()
}

// Get returns the holder at the given key.
func (b *Book) Get(key BookKey) (Address, bool) {
	if b == nil || b.tree == nil {
		return ZeroAddress, false
	}
	entry, ok := b.tree.Get(BookEntry{BookKey: key})
	if !ok {
		return ZeroAddress, false
	}
	return entry.Holder, true
}

// Add inserts an entry. It reports false when the key is already present;
// existing entries are never overwritten.
func (b *Book) Add(key BookKey, holder Address) bool {
	if b.tree == nil {
		b.tree = btree.NewG(2, entryLess)
	}
	if _, exists := b.tree.Get(BookEntry{BookKey: key}); exists {
		return false
	}
	b.tree.ReplaceOrInsert(BookEntry{BookKey: key, Holder: holder})
	return true
}

// Remove deletes the entry at the key, reporting whether it existed.
func (b *Book) Remove(key BookKey) bool {
	if b == nil || b.tree == nil {
		return false
	}
	_, existed := b.tree.Delete(BookEntry{BookKey: key})
	return existed
}

// Best returns the highest-priced entry for one payment token.
func (b *Book) Best(ftContract Address) (BookEntry, bool) {
	var best BookEntry
	found := false
	for _, entry := range b.Entries() {
		if entry.FTContract != ftContract {
			continue
		}
		if !found || entry.Price > best.Price {
			best = entry
			found = true
		}
	}
	return best, found
}

// Entries returns all entries in ascending key order.
func (b *Book) Entries() []BookEntry {
	if b == nil || b.tree == nil {
		return nil
	}
	out := make([]BookEntry, 0, b.tree.Len())
	b.tree.Ascend(func(entry BookEntry) bool {
		out = append(out, entry)
		return true
	})
	return out
}

// Clone returns an independent copy of the book.
func (b *Book) Clone() *Book {
	out := NewBook()
	for _, entry := range b.Entries() {
		out.tree.ReplaceOrInsert(entry)
	}
	return out
}

// MarshalJSON encodes the book as its ordered entry list.
func (b *Book) MarshalJSON() ([]byte, error) {
	entries := b.Entries()
	if entries == nil {
		entries = []BookEntry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON rebuilds the book from an entry list.
func (b *Book) UnmarshalJSON(data []byte) error {
	var entries []BookEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entryLess(entries[i], entries[j]) })
	b.tree = btree.NewG(2, entryLess)
	for _, entry := range entries {
		b.tree.ReplaceOrInsert(entry)
	}
	return nil
}
