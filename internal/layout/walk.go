package layout

import "github.com/tidwall/gjson"

// WalkFunc receives the concrete (escaped) path of a value and the value
// itself. Returning false stops the walk.
type WalkFunc func(path string, value gjson.Result) bool

// Walk performs a depth-first descent over the subtree rooted at root
// ("" for the whole document), calling fn for every value including
// containers. gjson has no recursive-descent operator; this walker
// supplies it while keeping every visited location addressable for a
// follow-up sjson write.
func (d *Doc) Walk(root string, fn WalkFunc) {
	walkValue(root, d.Get(root), fn)
}

func walkValue(path string, value gjson.Result, fn WalkFunc) bool {
	if !value.Exists() {
		return true
	}
	if !fn(path, value) {
		return false
	}
	if !value.IsObject() && !value.IsArray() {
		return true
	}
	cont := true
	idx := 0
	value.ForEach(func(key, child gjson.Result) bool {
		var childPath string
		if value.IsArray() {
			childPath = Join(path, Index(idx))
		} else {
			childPath = Join(path, EscapeKey(key.String()))
		}
		idx++
		cont = walkValue(childPath, child, fn)
		return cont
	})
	return cont
}

// EachIndex iterates an array at path, calling fn with each element's
// index and concrete path. Missing or non-array values iterate nothing.
func (d *Doc) EachIndex(path string, fn func(i int, elemPath string) bool) {
	arr := d.Get(path)
	if !arr.IsArray() {
		return
	}
	n := len(arr.Array())
	for i := 0; i < n; i++ {
		if !fn(i, Join(path, Index(i))) {
			return
		}
	}
}

// EachKey iterates an object at path, calling fn with each member's key
// and concrete (escaped) path. Missing or non-object values iterate
// nothing.
func (d *Doc) EachKey(path string, fn func(key, memberPath string) bool) {
	obj := d.Get(path)
	if !obj.IsObject() {
		return
	}
	cont := true
	obj.ForEach(func(key, _ gjson.Result) bool {
		cont = fn(key.String(), Join(path, EscapeKey(key.String())))
		return cont
	})
}

// CollectStrings gathers every string value at the given key anywhere in
// the subtree rooted at root. Used for alias reference checks ("Source")
// where the shape below a condition is open-ended.
func (d *Doc) CollectStrings(root, key string) []string {
	var out []string
	d.Walk(root, func(path string, value gjson.Result) bool {
		if value.IsObject() {
			if v := value.Get(EscapeKey(key)); v.Type == gjson.String {
				out = append(out, v.Str)
			}
		}
		return true
	})
	return out
}

// ContainsKeyValue reports whether any object in the subtree rooted at
// root has a member named key whose value equals want.
func (d *Doc) ContainsKeyValue(root, key, want string) bool {
	found := false
	d.Walk(root, func(path string, value gjson.Result) bool {
		if value.IsObject() {
			if v := value.Get(EscapeKey(key)); v.Type == gjson.String && v.Str == want {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
