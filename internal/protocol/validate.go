package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelmesh.ai/schemas"
)

var (
	schemaOnce sync.Once
	schemaSet  map[string]*jsonschema.Schema
	schemaErr  error
)

var schemaFiles = map[string]string{
	TypeHello:       "hello.schema.json",
	TypeWelcome:     "welcome.schema.json",
	TypeFrame:       "frame.schema.json",
	TypeChunkMesh:   "chunk_mesh.schema.json",
	TypeEdit:        "edit.schema.json",
	TypeSelectFrame: "select_frame.schema.json",
	TypeAck:         "ack.schema.json",
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range schemaFiles {
			b, err := fs.ReadFile(schemas.FS, name)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(schemaFiles))
		for typ, name := range schemaFiles {
			s, err := c.Compile(name)
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		schemaSet = out
	})
	return schemaSet, schemaErr
}

// Validate checks raw against the schema of its declared message type.
func Validate(raw []byte) error {
	base, err := DecodeBase(raw)
	if err != nil {
		return err
	}
	return ValidateAs(base.Type, raw)
}

// ValidateAs checks raw against the schema registered for typ.
func ValidateAs(typ string, raw []byte) error {
	set, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := set[typ]
	if !ok {
		return fmt.Errorf("unknown message type %q", typ)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
