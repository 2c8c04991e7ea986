package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nmorales/custos/internal/config"
	"github.com/nmorales/custos/internal/model"
)

// Render writes an envelope in the configured output mode. Field selection
// and results-only trimming apply to the data payload, never to meta.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = selectFields(data, settings.SelectFields)
	}

	if settings.ResultsOnly {
		if settings.OutputMode == "plain" {
			return writePlain(w, data)
		}
		return writeJSON(w, data)
	}

	if settings.OutputMode == "plain" {
		doc := map[string]any{
			"success":  env.Success,
			"data":     data,
			"warnings": env.Warnings,
			"meta":     env.Meta,
		}
		if env.Error != nil {
			doc["error"] = env.Error
		}
		return writePlain(w, doc)
	}

	env.Data = data
	return writeJSON(w, env)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writePlain flattens the value into sorted dotted-path key=value lines.
// Arrays use numeric segments, so data[1].symbol becomes data.1.symbol.
func writePlain(w io.Writer, v any) error {
	lines := make([]string, 0, 16)
	flatten("", toJSONValue(v), &lines)
	sort.Strings(lines)
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "empty")
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func flatten(prefix string, v any, lines *[]string) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			*lines = append(*lines, prefix+"={}")
			return
		}
		for k, child := range t {
			flatten(joinPath(prefix, k), child, lines)
		}
	case []any:
		if len(t) == 0 {
			*lines = append(*lines, prefix+"=[]")
			return
		}
		for i, child := range t {
			flatten(joinPath(prefix, strconv.Itoa(i)), child, lines)
		}
	case nil:
		*lines = append(*lines, prefix+"=null")
	default:
		*lines = append(*lines, fmt.Sprintf("%s=%v", prefix, t))
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// selectFields keeps only the named fields of the payload. Dotted paths
// reach into nested objects; a path that matches nothing is dropped.
func selectFields(data any, fields []string) any {
	switch t := toJSONValue(data).(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, pickPaths(m, fields))
		}
		return out
	case map[string]any:
		return pickPaths(t, fields)
	default:
		return t
	}
}

func pickPaths(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		path := strings.Split(field, ".")
		if v, ok := lookupPath(m, path); ok {
			out[field] = v
		}
	}
	return out
}

func lookupPath(m map[string]any, path []string) (any, bool) {
	cur := any(m)
	for _, segment := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// toJSONValue round-trips through encoding/json so struct tags decide the
// key names, matching what the json output mode would show.
func toJSONValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}
