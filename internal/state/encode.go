package state

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Encode serializes the values into the store file format: a version header
// followed by one "key: value" line per entry, sorted by key.
func Encode(version int, values map[string]string) []byte {
	var b bytes.Buffer

	_, _ = fmt.Fprintf(&b, "#Version: %d\n", version)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		_, _ = fmt.Fprintf(&b, "%s: %s\n", k, strconv.Quote(values[k]))
	}

	return b.Bytes()
}

// Decode parses the store file format, returning the file version and its values.
func Decode(body []byte) (int, map[string]string, error) {
	values := map[string]string{}
	version := 0

	for i, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}

		// The version header is only valid on the first line.
		if strings.HasPrefix(line, "#Version: ") {
			if i != 0 {
				return 0, nil, fmt.Errorf("unexpected version header on line %d", i+1)
			}

			v, err := strconv.Atoi(strings.TrimPrefix(line, "#Version: "))
			if err != nil {
				return 0, nil, fmt.Errorf("bad version header: %w", err)
			}

			version = v

			continue
		}

		key, rawValue, found := strings.Cut(line, ": ")
		if !found || !validKey(key) {
			return 0, nil, fmt.Errorf("malformed entry on line %d", i+1)
		}

		value, err := strconv.Unquote(rawValue)
		if err != nil {
			return 0, nil, errors.New("malformed value for key '" + key + "'")
		}

		values[key] = value
	}

	return version, values, nil
}
