package httpmsg

import "strings"

// Field is one (name, value) pair in a Headers multimap.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered (name, value) multimap. Lookups are ASCII
// case-insensitive; serialization preserves the case each name was
// appended with. This reproduces, field for field, the HttpHeaders class
// the source service used (append / find-first / find-all /
// replace-first-and-remove-others / delete-all / index access /
// insertion-order iteration).
type Headers struct {
	fields []Field
}

// Len returns the number of (name, value) pairs, including duplicates.
func (h *Headers) Len() int { return len(h.fields) }

// Fields returns the header pairs in insertion order. Callers must not
// mutate the returned slice.
func (h *Headers) Fields() []Field { return h.fields }

// At returns the i-th (name, value) pair.
func (h *Headers) At(i int) Field { return h.fields[i] }

// Append adds a new (name, value) pair without disturbing existing ones.
func (h *Headers) Append(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// find returns the index of the first field matching name at or after
// start, case-insensitively, or -1.
func (h *Headers) find(name string, start int) int {
	for i := start; i < len(h.fields); i++ {
		if strings.EqualFold(h.fields[i].Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the first value for name.
func (h *Headers) Get(name string) (string, bool) {
	if i := h.find(name, 0); i != -1 {
		return h.fields[i].Value, true
	}
	return "", false
}

// GetAll returns every value for name, in insertion order.
func (h *Headers) GetAll(name string) []string {
	var out []string
	for i := h.find(name, 0); i != -1; i = h.find(name, i+1) {
		out = append(out, h.fields[i].Value)
	}
	return out
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	return h.find(name, 0) != -1
}

// Set replaces the first occurrence of name with value and deletes any
// later duplicates. If name is absent, it is appended.
func (h *Headers) Set(name, value string) {
	i := h.find(name, 0)
	if i == -1 {
		h.Append(name, value)
		return
	}
	h.fields[i].Value = value
	h.deleteFrom(name, i+1)
}

// Del removes every occurrence of name.
func (h *Headers) Del(name string) {
	h.deleteFrom(name, 0)
}

func (h *Headers) deleteFrom(name string, start int) {
	i := h.find(name, start)
	for i != -1 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
		i = h.find(name, i)
	}
}

// String serializes the headers as "Name: Value\r\n" lines, in insertion
// order, with no trailing blank line.
func (h *Headers) String() string {
	var b strings.Builder
	for _, f := range h.fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	return b.String()
}
