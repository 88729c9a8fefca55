package heap

// KeyKind is the closed sum of hashable key variants an Object may be indexed
// by.
type KeyKind uint8

const (
	KeySym KeyKind = iota
	KeyNum
	KeyBool
)

// Key is a hashable object key: a symbol (string), a number, or a bool.
// Equality and hashing are by the canonicalised scalar, so Key is safe to use
// directly as a Go map / swiss.Map key.
type Key struct {
	Kind KeyKind
	Sym  string
	Num  float64
	Bool bool
}

// SymKey builds a symbol key.
func SymKey(s string) Key { return Key{Kind: KeySym, Sym: s} }

// NumKey builds a number key.
func NumKey(n float64) Key { return Key{Kind: KeyNum, Num: n} }

// BoolKey builds a bool key.
func BoolKey(b bool) Key { return Key{Kind: KeyBool, Bool: b} }
