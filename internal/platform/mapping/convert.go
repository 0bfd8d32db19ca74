package mapping

import "sort"

// ConvertKeys rewrites the raw keys of rec to destination names. Source
// names are dotted paths rooted at the schema's obj_key ("case.demographic.gender");
// nested objects keep their container key and are converted recursively, so
// {"demographic": {"gender": "male"}} becomes {"demographic": {"Patient.gender": "male"}}.
// Keys without a map are copied unchanged.
func (s *Schema) ConvertKeys(rec map[string]any) map[string]any {
	return s.convertObject(s.objKey, rec)
}

func (s *Schema) convertObject(prefix string, in map[string]any) map[string]any {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(in))
	for _, k := range keys {
		v := in[k]
		path := joinPath(prefix, k)
		switch val := v.(type) {
		case map[string]any:
			out[k] = s.convertObject(path, val)
			continue
		case []any:
			if containsObjects(val) {
				out[k] = s.convertList(path, val)
				continue
			}
		}
		if m, ok := s.FindBySource(path); ok && m.Destination.Name != "" {
			out[m.Destination.Name] = v
		} else {
			out[k] = v
		}
	}
	return out
}

func (s *Schema) convertList(path string, in []any) []any {
	out := make([]any, len(in))
	for i, item := range in {
		if obj, ok := item.(map[string]any); ok {
			out[i] = s.convertObject(path, obj)
		} else {
			out[i] = item
		}
	}
	return out
}

func containsObjects(list []any) bool {
	for _, item := range list {
		if _, ok := item.(map[string]any); ok {
			return true
		}
	}
	return false
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
