package ir

import "strings"

// Selection chooses which request fields take part in identification.
//
// Paths are dot separated object keys, e.g. "headers.authorization".
// An empty Include keeps the whole request. Exclude is applied after
// Include. Paths that do not exist are ignored.
type Selection struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// IsZero reports whether the selection keeps the full request.
func (s Selection) IsZero() bool {
	return len(s.Include) == 0 && len(s.Exclude) == 0
}

// Apply returns the identifying part of request. The input is not modified.
func (s Selection) Apply(request IRObject) IRObject {
	if request == nil {
		request = IRObject{}
	}
	if s.IsZero() {
		return request
	}

	out := request
	if len(s.Include) > 0 {
		out = IRObject{}
		for _, path := range s.Include {
			includePath(out, request, splitPath(path))
		}
	} else {
		out = CloneObject(request)
	}

	for _, path := range s.Exclude {
		excludePath(out, splitPath(path))
	}
	return out
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// includePath copies the value at path from src into dst, creating
// intermediate objects as needed.
func includePath(dst, src IRObject, path []string) {
	v, ok := src[path[0]]
	if !ok {
		return
	}
	if len(path) == 1 {
		dst[path[0]] = Clone(v)
		return
	}
	child, ok := v.(IRObject)
	if !ok {
		return
	}
	next, ok := dst[path[0]].(IRObject)
	if !ok {
		next = IRObject{}
		dst[path[0]] = next
	}
	includePath(next, child, path[1:])
}

// excludePath removes the value at path from obj in place.
func excludePath(obj IRObject, path []string) {
	if len(path) == 1 {
		delete(obj, path[0])
		return
	}
	child, ok := obj[path[0]].(IRObject)
	if !ok {
		return
	}
	excludePath(child, path[1:])
}
