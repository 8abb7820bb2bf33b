package stone

import (
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// validateSchema unifies the raw (already normalized) document with the
// embedded CUE schema. Structural violations — wrong section shapes, empty
// ids, unknown solve directives — surface here, before any Go-side checks.
func validateSchema(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return &ConfigError{Code: ErrCodeSchema, Message: "compiling embedded STONE schema", Err: err}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return &ConfigError{Code: ErrCodeSchema, Message: "looking up #Config in embedded schema", Err: err}
	}

	val := def.Unify(ctx.Encode(doc))
	if err := val.Validate(cue.Concrete(false)); err != nil {
		return &ConfigError{Code: ErrCodeSchema, Message: "config does not satisfy the STONE schema", Err: err}
	}
	return nil
}
