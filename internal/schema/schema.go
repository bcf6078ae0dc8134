// Package schema validates exported transcript packets against their
// published JSON schema. The replay command refuses packets that fail
// validation rather than feeding malformed data into the engine.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed transcript-packet-v1.schema.json
	packetSchema []byte

	//go:embed config-v1.schema.json
	configSchema []byte
)

// lazy compiles a schema on first use.
type lazy struct {
	id     string
	source []byte

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func (l *lazy) get() (*jsonschema.Schema, error) {
	l.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(l.id, bytes.NewReader(l.source)); err != nil {
			l.err = fmt.Errorf("add schema resource: %w", err)
			return
		}
		l.compiled, l.err = compiler.Compile(l.id)
	})
	return l.compiled, l.err
}

var (
	packetValidator = &lazy{id: "transcript-packet-v1.schema.json", source: packetSchema}
	configValidator = &lazy{id: "config-v1.schema.json", source: configSchema}
)

func validate(l *lazy, data []byte, what string) error {
	validator, err := l.get()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	if err := validator.Validate(instance); err != nil {
		return fmt.Errorf("%s does not match schema: %w", what, err)
	}
	return nil
}

// ValidatePacket checks a JSON-encoded transcript packet against the
// v1 packet schema.
func ValidatePacket(data []byte) error {
	return validate(packetValidator, data, "packet")
}

// ValidateConfig checks a JSON-format config file against the v1
// config schema. TOML and YAML configs are checked structurally by
// config.Validate instead.
func ValidateConfig(data []byte) error {
	return validate(configValidator, data, "config")
}
