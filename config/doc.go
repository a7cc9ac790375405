// Package config parses backend lists and the stdio allowlist, and loads the optional YAML config file.
//
// Backends are declared as comma separated "name:endpoint" pairs, split on the first colon:
//
//	calc:stdio://python calc.py,search:sse://search.local:8080
package config
