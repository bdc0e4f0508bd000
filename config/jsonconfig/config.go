// Package jsonconfig parses JSON configuration in which a section's "Type"
// field selects which implementation the rest of the section configures.
package jsonconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Implementations maps the names of implementations to a constructor of
// their (default-filled) configuration. As a special case, "" names the
// implementation used when a section is absent or has no Type.
type Implementations map[string]func() interface{}

var emptyJson = []byte("{}")

// ParseSection picks the implementation named by data's Type and unmarshals
// data into a fresh configuration for it.
func ParseSection(name string, data json.RawMessage, impls Implementations) (interface{}, error) {
	implName, err := parseType(data)
	if err != nil {
		return nil, fmt.Errorf("Error parsing type for %v: %v", name, err)
	}
	makeImpl, ok := impls[implName]
	if !ok {
		return nil, fmt.Errorf("Error parsing %v: %q is not a valid implementation (have %v)", name, implName, implNames(impls))
	}
	impl := makeImpl()
	if len(data) > 0 {
		if err := json.Unmarshal(data, impl); err != nil {
			return nil, fmt.Errorf("Error parsing %v: %v", name, err)
		}
	}
	return impl, nil
}

// Find the type, which is simply the string value for the key "Type"
func parseType(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var t struct{ Type string }
	if err := json.Unmarshal(data, &t); err != nil {
		return "", err
	}
	return t.Type, nil
}

func implNames(impls Implementations) []string {
	var names []string
	for k := range impls {
		names = append(names, fmt.Sprintf("%q", k))
	}
	return names
}

// GetConfigText finds the right text for a config flag.
// If configFlag looks like JSON it is used as-is; otherwise it is read as a file.
// An empty flag gives an empty object.
func GetConfigText(configFlag string) ([]byte, error) {
	trimmed := strings.TrimSpace(configFlag)
	if trimmed == "" {
		return emptyJson, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		log.Debugf("Using config flag as JSON config")
		return []byte(trimmed), nil
	}
	log.Infof("Reading config file %v", configFlag)
	text, err := os.ReadFile(configFlag)
	if err != nil {
		return nil, fmt.Errorf("Error loading config file %v: %v", configFlag, err)
	}
	return text, nil
}
