package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in YAML content using the
// standard library, matching the teacher's envexpand.go. Missing variables
// expand to empty string.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
