package compact

import (
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Limits applied by Bound.
const (
	MaxDepth       = 2
	MaxStringChars = 1024
	MaxArrayItems  = 16
	MaxObjectKeys  = 16
)

const (
	truncatedArrayKey  = "_truncatedArrayItems"
	truncatedObjectKey = "_truncatedObjectKeys"
)

// Bound returns a size-limited copy of the JSON value raw. Strings are cut to
// MaxStringChars characters plus an ellipsis; arrays and objects keep their
// first MaxArrayItems/MaxObjectKeys entries followed by a count marker; values
// nested at MaxDepth or deeper collapse into a count-only placeholder. Object
// key order is preserved.
func Bound(raw []byte) []byte {
	return appendBounded(nil, gjson.ParseBytes(raw), 0)
}

// BoundResult is Bound for an already parsed value at the given depth.
func BoundResult(v gjson.Result, depth int) []byte {
	return appendBounded(nil, v, depth)
}

type member struct {
	key gjson.Result
	val gjson.Result
}

func appendBounded(dst []byte, v gjson.Result, depth int) []byte {
	switch {
	case v.IsArray():
		items := v.Array()
		if depth >= MaxDepth {
			return appendMarker(dst, truncatedArrayKey, len(items))
		}
		dst = append(dst, '[')
		for i, item := range items {
			if i == MaxArrayItems {
				dst = append(dst, ',')
				dst = appendMarker(dst, truncatedArrayKey, len(items)-MaxArrayItems)
				break
			}
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendBounded(dst, item, depth+1)
		}
		return append(dst, ']')

	case v.IsObject():
		var members []member
		v.ForEach(func(key, value gjson.Result) bool {
			members = append(members, member{key: key, val: value})
			return true
		})
		if depth >= MaxDepth {
			return appendMarker(dst, truncatedObjectKey, len(members))
		}
		dst = append(dst, '{')
		for i, m := range members {
			if i == MaxObjectKeys {
				dst = append(dst, ',')
				dst = gjson.AppendJSONString(dst, truncatedObjectKey)
				dst = append(dst, ':')
				dst = strconv.AppendInt(dst, int64(len(members)-MaxObjectKeys), 10)
				break
			}
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = gjson.AppendJSONString(dst, m.key.Str)
			dst = append(dst, ':')
			dst = appendBounded(dst, m.val, depth+1)
		}
		return append(dst, '}')

	case v.Type == gjson.String:
		return gjson.AppendJSONString(dst, Truncate(v.Str, MaxStringChars))

	case !v.Exists():
		return append(dst, "null"...)

	default:
		return append(dst, v.Raw...)
	}
}

func appendMarker(dst []byte, key string, n int) []byte {
	dst = append(dst, '{')
	dst = gjson.AppendJSONString(dst, key)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, '}')
}

// Truncate cuts s to max characters and appends an ellipsis when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "…"
		}
		n++
	}
	return s
}
