package browser

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed scripts/*.js
var scriptFS embed.FS

// scriptLoader reads the embedded page functions once and turns them into
// call expressions.
type scriptLoader struct {
	mu    sync.Mutex
	cache map[string]string
}

func newScriptLoader() *scriptLoader {
	return &scriptLoader{cache: make(map[string]string)}
}

func (l *scriptLoader) load(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if src, ok := l.cache[name]; ok {
		return src, nil
	}

	data, err := scriptFS.ReadFile("scripts/" + name + ".js")
	if err != nil {
		return "", fmt.Errorf("script not found: %s", name)
	}

	src := strings.TrimSuffix(strings.TrimSpace(string(data)), ";")
	l.cache[name] = src
	return src, nil
}

// call builds an expression invoking the named function with arg encoded
// as JSON. A nil arg calls it without arguments.
func (l *scriptLoader) call(name string, arg any) (string, error) {
	src, err := l.load(name)
	if err != nil {
		return "", err
	}

	if arg == nil {
		return "(" + src + ")()", nil
	}

	encoded, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("encoding %s argument: %w", name, err)
	}
	return "(" + src + ")(" + string(encoded) + ")", nil
}
