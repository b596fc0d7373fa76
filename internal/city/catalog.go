package city

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultIcon is used for any type missing from the catalog.
const DefaultIcon = "🏢"

type Entry struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// ---------- Catalog ----------

var catalog = []Entry{
	{Type: "house", Icon: "🏠"},
	{Type: "apartment", Icon: "🏢"},
	{Type: "library", Icon: "📚"},
	{Type: "fountain", Icon: "⛲"},
	{Type: "park", Icon: "🌳"},
	{Type: "shop", Icon: "🏪"},
	{Type: "museum", Icon: "🏛️"},
	{Type: "cafe", Icon: "☕"},
	{Type: "theater", Icon: "🎭"},
	{Type: "statue", Icon: "🗿"},
	{Type: "garden", Icon: "🌷"},
	{Type: "office", Icon: "🏢"},
	{Type: "school", Icon: "🏫"},
	{Type: "hospital", Icon: "🏥"},
	{Type: "hotel", Icon: "🏨"},
	{Type: "restaurant", Icon: "🍽️"},
	{Type: "factory", Icon: "🏭"},
	{Type: "weird_sculpture", Icon: "🗿"},
}

var iconIndex = func() map[string]string {
	m := make(map[string]string, len(catalog))
	for _, e := range catalog {
		m[e.Type] = e.Icon
	}
	return m
}()

// IconFor returns the glyph for t, or DefaultIcon.
func IconFor(t string) string {
	if icon, ok := iconIndex[t]; ok {
		return icon
	}
	return DefaultIcon
}

// Known reports whether t is a catalog type.
func Known(t string) bool {
	_, ok := iconIndex[t]
	return ok
}

// Types lists the recognized type names in catalog order.
func Types() []string {
	out := make([]string, len(catalog))
	for i, e := range catalog {
		out[i] = e.Type
	}
	return out
}

// Entries returns a copy of the catalog with labels filled in.
func Entries() []Entry {
	out := make([]Entry, len(catalog))
	for i, e := range catalog {
		e.Label = Label(e.Type)
		out[i] = e
	}
	return out
}

// Label turns a type name into display text: "weird_sculpture" becomes
// "Weird Sculpture".
func Label(t string) string {
	words := strings.Fields(strings.ReplaceAll(t, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
