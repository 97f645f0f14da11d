package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for cross-field validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// Built-in schema names.
const (
	SchemaSimulation = "simulation"
)

// NewSchemaRegistry creates a registry holding the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema(SchemaSimulation, "#Simulation", builtinSimulationSchema); err != nil {
		panic(err)
	}
	return sr
}

// RegisterSchema compiles source and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, definition)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Validate unifies data with the named schema and reports every violation.
// A cue.Context is not safe for concurrent use, so validation is serialized.
func (sr *SchemaRegistry) Validate(schemaName string, data interface{}) ValidationErrors {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return ValidationErrors{{Message: fmt.Sprintf("schema %s not found", schemaName)}}
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return convertCUEErrors(err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinSimulationSchema holds the constraints that span fields or sections.
const builtinSimulationSchema = `
#MonthDay: =~"^(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$"

#Level: {
	id:               int & >0
	name:             string & !=""
	min_compensation: number & >0
	max_compensation: number & >=min_compensation
	promotion_rate:   number & >=0 & <=1
	merit_rate:       number & >=0 & <=1
	hire_weight:      number & >=0
	...
}

#Simulation: {
	simulation: {
		start_year: int & >=1900 & <=2200
		end_year:   int & >=start_year & <=2200
		...
	}

	workforce: {
		target_growth_rate:        number & >=0 & <=1
		total_termination_rate:    number & >=0 & <1
		new_hire_termination_rate: number & >=0 & <1
		new_hire_min_age:          int & >=14
		new_hire_max_age:          int & >=new_hire_min_age
		...
	}

	levels: [#Level, ...#Level]

	compensation: {
		promotion_date: #MonthDay
		merit_date:     #MonthDay & >promotion_date
		...
	}

	enrollment: {
		default_deferral_rate: number & >=0 & <=1
		escalation: {
			enabled: bool
			if enabled {
				cap:            >=default_deferral_rate
				effective_date: #MonthDay
			}
			...
		}
		...
	}

	storage: {
		driver: "sqlite" | "postgres"
		if driver == "postgres" {
			dsn: =~"^postgres(ql)?://"
		}
		...
	}

	...
}
`
