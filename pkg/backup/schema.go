package backup

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed artifact.schema.json
var artifactSchema string

const artifactSchemaURL = "https://suitesync.local/schemas/backup-artifact.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(artifactSchemaURL, strings.NewReader(artifactSchema)); err != nil {
			compileErr = errors.Wrap(err, "artifact schema load failed")
			return
		}
		compiledSchema, compileErr = c.Compile(artifactSchemaURL)
		if compileErr != nil {
			compileErr = errors.Wrap(compileErr, "artifact schema compile failed")
		}
	})
	return compiledSchema, compileErr
}

func validateSchema(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "artifact is not valid JSON")
	}

	if err := s.Validate(doc); err != nil {
		return errors.Wrap(err, "artifact does not match schema")
	}
	return nil
}
