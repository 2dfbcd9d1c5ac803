package restclient

import (
	"net/url"
	"strings"
)

// Pair is a single (key, value) option. Unlike a map, a []Pair allows a
// key to repeat, which some remote catalogs rely on (e.g. multiple
// "dataset=" values in one query).
type Pair struct {
	Key   string
	Value string
}

// Options is anything normalizePairs knows how to flatten into []Pair:
// a map[string]string, a []Pair (already flat), or a []string of "k=v"
// entries.
type Options interface{}

// normalizePairs accepts the three option shapes the spec allows and
// flattens them into an ordered pair list.
func normalizePairs(opts Options) ([]Pair, error) {
	switch v := opts.(type) {
	case nil:
		return nil, nil
	case []Pair:
		return v, nil
	case map[string]string:
		pairs := make([]Pair, 0, len(v))
		for k, val := range v {
			pairs = append(pairs, Pair{Key: k, Value: val})
		}
		return pairs, nil
	case []string:
		pairs := make([]Pair, 0, len(v))
		for _, kv := range v {
			k, val, _ := strings.Cut(kv, "=")
			pairs = append(pairs, Pair{Key: k, Value: val})
		}
		return pairs, nil
	default:
		return nil, &UnsupportedOptionsError{Type: v}
	}
}

// UnsupportedOptionsError is returned when Options is not one of the
// three shapes the client understands.
type UnsupportedOptionsError struct {
	Type interface{}
}

func (e *UnsupportedOptionsError) Error() string {
	return "restclient: unsupported options type"
}

// encodeQuery builds a "?k=v&k=v" query string from pairs, preserving
// repeats and order.
func encodeQuery(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return "?" + strings.Join(parts, "&")
}

// encodeForm builds an application/x-www-form-urlencoded body from pairs.
func encodeForm(pairs []Pair) string {
	values := make(url.Values)
	for _, p := range pairs {
		values.Add(p.Key, p.Value)
	}
	return values.Encode()
}
