package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-live/core/transport"
)

// writeSchema prints the JSON schema of the records exchanged with the
// speech service, for service implementers and fixtures.
func writeSchema(w io.Writer) error {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&transport.Record{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
