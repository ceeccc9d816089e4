package params

import "strings"

// Separator divides scopes inside a parameter name.
const Separator = "/"

// Canonical strips a trailing value-output suffix such as ":0".
func Canonical(name string) string {
	i := strings.LastIndexByte(name, ':')
	if i < 0 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	if i == len(name)-1 {
		return name
	}
	return name[:i]
}

// Split returns the enclosing scope and the local name.
func Split(name string) (scope, local string) {
	name = Canonical(name)
	i := strings.LastIndex(name, Separator)
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// Join builds a name from a scope and a name relative to it. An empty scope is the root.
func Join(scope, rel string) string {
	scope = strings.Trim(scope, Separator)
	if scope == "" {
		return rel
	}
	return scope + Separator + rel
}

// Rel returns name relative to prefix. The match is on whole scope segments,
// so "target" does not match "target2/w". The root prefix matches everything.
func Rel(prefix, name string) (string, bool) {
	name = Canonical(name)
	prefix = strings.Trim(prefix, Separator)
	if prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix+Separator) {
		return "", false
	}
	rel := name[len(prefix)+len(Separator):]
	if rel == "" {
		return "", false
	}
	return rel, true
}
