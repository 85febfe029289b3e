package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalRuntimePath(t *testing.T) {
	tests := []struct {
		runtime string
		want    string
		ok      bool
	}{
		{"./runtime/mod.tsx", "./runtime/mod.tsx", true},
		{"file:///work/runtime/mod.tsx", "/work/runtime/mod.tsx", true},
		{"https://example.com/runtime/mod.tsx", "", false},
		{"http://localhost:8000/mod.tsx", "", false},
	}

	for _, test := range tests {
		path, ok := localRuntimePath(test.runtime)
		assert.Equal(t, test.ok, ok, test.runtime)
		assert.Equal(t, test.want, path, test.runtime)
	}
}

func TestEngineAddress(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"http://localhost:5000", "localhost:5000", true},
		{"ws://localhost:5000/session", "localhost:5000", true},
		{"https://engine.example.com", "engine.example.com:443", true},
		{"http://engine.example.com", "engine.example.com:80", true},
		{"not a url", "", false},
	}

	for _, test := range tests {
		address, ok := engineAddress(test.url)
		assert.Equal(t, test.ok, ok, test.url)
		assert.Equal(t, test.want, address, test.url)
	}
}
