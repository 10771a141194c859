package commands

import (
	"encoding/json"
	"fmt"

	"github.com/MultiDragon/libpuns/pkg/registry"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the bundled demo class registry as JSON Schema",
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	reg, err := buildDemoRegistry()
	if err != nil {
		return err
	}

	doc := classRegistrySchema(reg, avatarClass)
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// classRegistrySchema renders a single configured class as a JSON
// Schema object, one property per field, so external tooling (docs
// generators, client stubs in other languages) can consume the
// registry without linking against pkg/registry.
func classRegistrySchema(reg *registry.Registry, classNumber uint16) *jsonschema.Schema {
	def, ok := reg.Lookup(classNumber)
	if !ok {
		return &jsonschema.Schema{Type: "object"}
	}

	props := orderedmap.New[string, *jsonschema.Schema]()
	for i := uint16(0); i < def.FieldCount(); i++ {
		field, ok := def.FieldByNumber(i)
		if !ok {
			continue
		}
		props.Set(field.Name, &jsonschema.Schema{
			Type:        "array",
			Description: fmt.Sprintf("field %d, flags=%d", i, field.Flags),
		})
	}

	return &jsonschema.Schema{
		Type:       "object",
		Title:      fmt.Sprintf("class-%d", classNumber),
		Properties: props,
	}
}
