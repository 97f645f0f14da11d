package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

//go:embed sample.yaml
var sample []byte

// Sample returns a commented example configuration.
func Sample() []byte {
	return bytes.Clone(sample)
}

var monthDayPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)

// Default returns a file holding every default. Decoded files start from it.
func Default() *File {
	return &File{
		Simulation: SimulationSection{RandomSeed: 42},
		Workforce: WorkforceSection{
			NewHireSalaryAdjustment: 1,
			NewHireMinAge:           22,
			NewHireMaxAge:           45,
		},
		Compensation: CompensationSection{
			PromotionMinTenure: 1,
			PromotionDate:      "01-01",
			MeritDate:          "07-01",
		},
		Enrollment: EnrollmentSection{
			WindowDays: 30,
			Escalation: EscalationSection{EffectiveDate: "01-01"},
		},
		Tolerances: TolerancesSection{
			Compensation:    engine.DefaultTolerances().Compensation,
			GrowthEmployees: engine.DefaultTolerances().GrowthEmployees,
		},
		Storage: StorageSection{Driver: "sqlite", Path: "wfsim.db"},
		Policy:  PolicySection{Enabled: true, Builtins: true},
		Runtime: RuntimeSection{OptimizationLevel: "medium"},
	}
}

// Loader reads, overrides and validates configuration files.
type Loader struct {
	schemas  *SchemaRegistry
	validate *validator.Validate
}

// NewLoader creates a loader with the built-in schemas.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("monthday", func(fl validator.FieldLevel) bool {
		return monthDayPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("tenureband", func(fl validator.FieldLevel) bool {
		return tenure.IsTenureBand(fl.Field().String())
	})

	return &Loader{
		schemas:  NewSchemaRegistry(),
		validate: v,
	}
}

// Schemas returns the schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// Load reads path, applies env when it is not nil and validates the result.
// Any problem is reported as a configuration error wrapping ValidationErrors.
func (l *Loader) Load(path string, env *Env) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("failed to read config: %v", err))
	}
	return l.Parse(data, path, env)
}

// Parse decodes YAML content. Unknown keys are rejected.
func (l *Loader) Parse(data []byte, source string, env *Env) (*File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, configError(ValidationErrors{{File: source, Message: "configuration is empty"}})
		}
		return nil, configError(convertYAMLError(source, err))
	}

	if env != nil {
		env.Apply(f)
	}
	if errs := l.Validate(f); len(errs) > 0 {
		for i := range errs {
			errs[i].File = source
		}
		return nil, configError(errs)
	}
	return f, nil
}

// Validate checks struct tags first and the CUE schema second. Both passes
// must succeed before a file converts to an engine configuration.
func (l *Loader) Validate(f *File) ValidationErrors {
	var errs ValidationErrors
	if err := l.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return ValidationErrors{{Message: err.Error()}}
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Path:    strings.TrimPrefix(fe.Namespace(), "File."),
				Message: describeFieldError(fe),
			})
		}
		return errs
	}
	return l.schemas.Validate(SchemaSimulation, f)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if", "required_without":
		return fmt.Sprintf("is required (%s %s)", fe.Tag(), fe.Param())
	case "monthday":
		return fmt.Sprintf("%q is not an MM-DD date", fe.Value())
	case "tenureband":
		return fmt.Sprintf("%q is not a tenure band", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "gtefield", "gtfield":
		return fmt.Sprintf("must not be below %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())
	}
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	return out
}

func convertYAMLError(source string, err error) ValidationErrors {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		out := make(ValidationErrors, 0, len(te.Errors))
		for _, msg := range te.Errors {
			out = append(out, ValidationError{File: source, Message: msg})
		}
		return out
	}
	return ValidationErrors{{File: source, Message: err.Error()}}
}

func configError(errs ValidationErrors) error {
	e := engine.NewConfigurationError(fmt.Sprintf("invalid configuration: %v", errs))
	e.Err = errs
	return e
}
