package jsonconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fooConfig struct {
	Type string
	Arg  int
}

type barConfig struct {
	Type  string
	Names []string
}

var impls = Implementations{
	"":    func() interface{} { return &fooConfig{Arg: 7} },
	"foo": func() interface{} { return &fooConfig{Arg: 7} },
	"bar": func() interface{} { return &barConfig{} },
}

func TestParseSection(t *testing.T) {
	v, err := ParseSection("thing", nil, impls)
	assert.Nil(t, err)
	assert.Equal(t, &fooConfig{Arg: 7}, v)

	v, err = ParseSection("thing", json.RawMessage(`{"Type": "foo", "Arg": 2}`), impls)
	assert.Nil(t, err)
	assert.Equal(t, &fooConfig{Type: "foo", Arg: 2}, v)

	v, err = ParseSection("thing", json.RawMessage(`{"Type": "bar", "Names": ["a"]}`), impls)
	assert.Nil(t, err)
	assert.Equal(t, &barConfig{Type: "bar", Names: []string{"a"}}, v)

	if _, err := ParseSection("thing", json.RawMessage(`{"Type": "baz"}`), impls); err == nil {
		t.Fatalf("Expected error for unknown type")
	}
	if _, err := ParseSection("thing", json.RawMessage(`{"Type": 3}`), impls); err == nil {
		t.Fatalf("Expected error for malformed type")
	}
}

func TestGetConfigText(t *testing.T) {
	text, err := GetConfigText("")
	assert.Nil(t, err)
	assert.Equal(t, "{}", string(text))

	text, err = GetConfigText(` {"Root": "/x"}`)
	assert.Nil(t, err)
	assert.Equal(t, `{"Root": "/x"}`, string(text))

	path := filepath.Join(t.TempDir(), "ygrid.json")
	os.WriteFile(path, []byte(`{"Port": 1}`), 0644)
	text, err = GetConfigText(path)
	assert.Nil(t, err)
	assert.Equal(t, `{"Port": 1}`, string(text))

	if _, err := GetConfigText(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Expected error for missing file")
	}
}
