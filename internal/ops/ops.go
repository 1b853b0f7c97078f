package ops

// Info describes an opaque operation known to the toolchain. The optimizer
// never interprets these operations; the metadata only serves structural
// checking and dead code elimination.
type Info struct {
	Name    string
	Arity   int  // number of inputs; -1 when variadic
	Results int  // number of outputs; -1 when it depends on the use site
	Pure    bool // safe to remove when all results are unused
}

var registry = buildRegistry()

func buildRegistry() map[string]Info {
	m := make(map[string]Info)
	for _, info := range getBuiltins() {
		m[info.Name] = info
	}
	return m
}

// Lookup returns metadata for a known operation. Operations absent from the
// registry are legal; callers must treat them conservatively.
func Lookup(name string) (Info, bool) {
	info, ok := registry[name]
	return info, ok
}

// Pure reports whether the operation can be removed when its results are
// unused. Unknown operations count as impure.
func Pure(name string) bool {
	info, ok := registry[name]
	return ok && info.Pure
}
