package dataset

import "strings"

// Header is the column set of a loaded dataset. It is shared by every
// record of that load.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a header from column names in file order.
// Duplicate names resolve to their first position.
func NewHeader(names []string) *Header {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		h.names[i] = name
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	return h
}

// Names returns a copy of the column names.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len returns the number of columns.
func (h *Header) Len() int { return len(h.names) }

// Index returns the position of a column.
func (h *Header) Index(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// Missing returns the columns from required that the header lacks, in order.
func (h *Header) Missing(required []string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := h.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Record is one immutable row. Key holds the trimmed lookup column.
type Record struct {
	Key    string
	values []string
	header *Header
}

// NewRecord builds a record over header. Values beyond the header are
// dropped; missing trailing values read as "".
func NewRecord(header *Header, key string, values []string) Record {
	v := make([]string, header.Len())
	copy(v, values)
	return Record{Key: strings.TrimSpace(key), values: v, header: header}
}

// Get returns the value of column, or "" when the column is unknown.
func (r Record) Get(column string) string {
	if r.header == nil {
		return ""
	}
	i, ok := r.header.index[column]
	if !ok {
		return ""
	}
	return r.values[i]
}

// GetOr returns the value of column, or fallback when it is empty.
func (r Record) GetOr(column, fallback string) string {
	if v := r.Get(column); v != "" {
		return v
	}
	return fallback
}

// Fields returns the record as a column -> value map.
func (r Record) Fields() map[string]string {
	if r.header == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(r.header.names))
	for i, name := range r.header.names {
		if _, set := out[name]; !set {
			out[name] = r.values[i]
		}
	}
	return out
}

// Project returns only the given columns.
func (r Record) Project(columns []string) map[string]string {
	out := make(map[string]string, len(columns))
	for _, col := range columns {
		out[col] = r.Get(col)
	}
	return out
}

// sizeBytes approximates the heap held by the record.
func (r Record) sizeBytes() int64 {
	// string header per value, slice header, key header and header pointer
	n := int64(16*len(r.values) + 24 + 16 + 8 + len(r.Key))
	for _, v := range r.values {
		n += int64(len(v))
	}
	return n
}

// Dataset is an immutable, key-ordered sequence of records produced by one load.
type Dataset struct {
	header        *Header
	keyColumn     string
	descriptive   []string
	records       []Record
	assumedSorted bool
	firstUnsorted int
	dropped       int
	sizeBytes     int64
}

// New assembles a dataset from already-built records and runs the sortedness
// check over the first sortCheckLimit records.
func New(header *Header, keyColumn string, descriptive []string, records []Record, sortCheckLimit int) *Dataset {
	d := &Dataset{
		header:      header,
		keyColumn:   keyColumn,
		descriptive: append([]string(nil), descriptive...),
		records:     records,
	}
	d.assumedSorted, d.firstUnsorted = CheckSorted(records, sortCheckLimit)
	for _, r := range records {
		d.sizeBytes += r.sizeBytes()
	}
	return d
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns the i-th record.
func (d *Dataset) At(i int) Record { return d.records[i] }

// KeyAt returns the key of the i-th record.
func (d *Dataset) KeyAt(i int) string { return d.records[i].Key }

// Columns returns the header column names.
func (d *Dataset) Columns() []string { return d.header.Names() }

// KeyColumn returns the lookup column name.
func (d *Dataset) KeyColumn() string { return d.keyColumn }

// DescriptiveColumns returns the required non-key columns.
func (d *Dataset) DescriptiveColumns() []string {
	return append([]string(nil), d.descriptive...)
}

// AssumedSorted reports whether the checked prefix was in key order.
func (d *Dataset) AssumedSorted() bool { return d.assumedSorted }

// FirstUnsorted returns the index of the first out-of-order record, or -1.
func (d *Dataset) FirstUnsorted() int { return d.firstUnsorted }

// Dropped returns how many rows were discarded as invalid while parsing.
func (d *Dataset) Dropped() int { return d.dropped }

// SizeBytes approximates the memory held by the records.
func (d *Dataset) SizeBytes() int64 {
	if d == nil {
		return 0
	}
	return d.sizeBytes
}
