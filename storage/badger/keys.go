package badger

// Key layout, per collection:
//
//	<collection>:entry:<id>   mus-encoded core.Entry
//	<collection>:meta:dim     decimal vector dimension
const (
	entryInfix     = ":entry:"
	dimensionInfix = ":meta:dim"
)

// entryPrefix returns the prefix shared by every entry key of a collection.
func entryPrefix(collection string) []byte {
	return []byte(collection + entryInfix)
}

// makeEntryKey generates the key of an entry by id.
func makeEntryKey(collection, id string) []byte {
	prefix := entryPrefix(collection)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// makeDimensionKey generates the key holding a collection's dimension.
func makeDimensionKey(collection string) []byte {
	return []byte(collection + dimensionInfix)
}
