package restclient

// pairsToJSONMap collapses a pair list into a JSON-marshalable map,
// preserving repeated keys as arrays rather than overwriting them.
func pairsToJSONMap(pairs []Pair) map[string]interface{} {
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		existing, ok := out[p.Key]
		if !ok {
			out[p.Key] = p.Value
			continue
		}
		switch v := existing.(type) {
		case []string:
			out[p.Key] = append(v, p.Value)
		case string:
			out[p.Key] = []string{v, p.Value}
		}
	}
	return out
}
