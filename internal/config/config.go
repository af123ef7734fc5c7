// Package config loads the HCL configuration file: store layout
// (workdir, separators, versioning, per-type target dirs) and machine
// manifests that bind to registered Go handler functions.
package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/datamill-io/datamill/internal/ctxlog"
	"github.com/datamill-io/datamill/internal/ident"
	"github.com/datamill-io/datamill/internal/machine"
	"github.com/datamill-io/datamill/internal/store"
)

// File is the top-level HCL schema.
type File struct {
	Workdir    string           `hcl:"workdir,optional"`
	LogLevel   string           `hcl:"log_level,optional"`
	LogFormat  string           `hcl:"log_format,optional"`
	Separators *SeparatorsBlock `hcl:"separators,block"`
	Versioning *VersioningBlock `hcl:"versioning,block"`
	Targets    []*TargetBlock   `hcl:"target,block"`
	Machines   []*MachineBlock  `hcl:"machine,block"`
}

// SeparatorsBlock overrides the identifier separators. Fields are pointers
// because the empty string is a meaningful value for the index separator.
type SeparatorsBlock struct {
	Primary   *string `hcl:"primary,optional"`
	Secondary *string `hcl:"secondary,optional"`
	Index     *string `hcl:"index,optional"`
	Branch    *string `hcl:"branch,optional"`
}

// VersioningBlock selects how stored targets are versioned on disk.
type VersioningBlock struct {
	Mode string `hcl:"mode"`
}

// TargetBlock configures one target type: an optional dedicated directory,
// the serialization codec and the write lock.
type TargetBlock struct {
	Name   string `hcl:"name,label"`
	Path   string `hcl:"path,optional"`
	Codec  string `hcl:"codec,optional"`
	Locked bool   `hcl:"locked,optional"`
}

// MachineBlock is a machine manifest. Handler names the Go function the
// manifest binds to; the function must be registered before the config is
// applied.
type MachineBlock struct {
	Name        string        `hcl:"name,label"`
	Description string        `hcl:"description,optional"`
	Inputs      []*InputBlock `hcl:"input,block"`
	Output      string        `hcl:"output,optional"`
	Aggregate   string        `hcl:"aggregate,optional"`
	Requires    string        `hcl:"requires,optional"`
	Params      []*ParamBlock `hcl:"param,block"`
	Handler     string        `hcl:"handler"`
}

// InputBlock declares one machine input.
type InputBlock struct {
	Name       string `hcl:"name,label"`
	Type       string `hcl:"type,optional"`
	Variable   bool   `hcl:"variable,optional"`
	NoFallback bool   `hcl:"no_fallback,optional"`
}

// ParamBlock declares one machine parameter.
type ParamBlock struct {
	Name        string         `hcl:"name,label"`
	Type        string         `hcl:"type,optional"`
	Description string         `hcl:"description,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
}

// Config is a loaded configuration file.
type Config struct {
	File
	path string
}

// Default returns the configuration used when no file is given: current
// directory as workdir, default separators, no versioning, no manifests.
func Default() *Config {
	return &Config{File: File{Workdir: "."}}
}

// Load parses and decodes the HCL configuration at path.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding configuration file.", "path", path)
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}

	cfg := &Config{path: path}
	diags = gohcl.DecodeBody(file.Body, nil, &cfg.File)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", path, diags.Error())
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "."
	}
	logger.Debug("Configuration decoded.",
		"path", path, "targets", len(cfg.Targets), "machines", len(cfg.Machines))
	return cfg, nil
}

// Path returns the file the configuration was loaded from, empty for the
// default configuration.
func (c *Config) Path() string { return c.path }

// IdentSeparators resolves the effective identifier separators.
func (c *Config) IdentSeparators() ident.Separators {
	seps := ident.DefaultSeparators()
	if c.Separators == nil {
		return seps
	}
	if c.Separators.Primary != nil {
		seps.Primary = *c.Separators.Primary
	}
	if c.Separators.Secondary != nil {
		seps.Secondary = *c.Separators.Secondary
	}
	if c.Separators.Index != nil {
		seps.Index = *c.Separators.Index
	}
	if c.Separators.Branch != nil {
		seps.Branch = *c.Separators.Branch
	}
	return seps
}

// VersionMode resolves the configured versioning mode.
func (c *Config) VersionMode() (store.VersionMode, error) {
	if c.Versioning == nil {
		return store.VersionNone, nil
	}
	return store.ParseVersionMode(c.Versioning.Mode)
}

// BuildMachines instantiates the manifest machines and registers them,
// binding each manifest to its named handler function.
func (c *Config) BuildMachines(reg *machine.Registry, handlers map[string]machine.Func) error {
	for _, m := range c.Machines {
		fn, ok := handlers[m.Handler]
		if !ok {
			return fmt.Errorf("machine %q: unknown handler %q", m.Name, m.Handler)
		}
		spec, err := buildSpec(m, fn)
		if err != nil {
			return err
		}
		reg.Register(spec)
	}
	return nil
}

func buildSpec(m *MachineBlock, fn machine.Func) (*machine.Spec, error) {
	spec := machine.New(m.Name, fn)
	spec.Description = m.Description
	for _, in := range m.Inputs {
		spec.AddInput(machine.InputSpec{
			Name:       in.Name,
			Type:       in.Type,
			Variable:   in.Variable,
			NoFallback: in.NoFallback,
		})
	}
	if m.Output != "" {
		spec.AddOutput(m.Output)
	}

	aggregate, err := machine.ParseAggregateMode(m.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("machine %q: %w", m.Name, err)
	}
	spec.WithAggregate(aggregate)

	requires, err := machine.ParseRequiresMode(m.Requires)
	if err != nil {
		return nil, fmt.Errorf("machine %q: %w", m.Name, err)
	}
	spec.WithRequires(requires)

	for _, p := range m.Params {
		param, err := buildParam(m.Name, p)
		if err != nil {
			return nil, err
		}
		spec.AddParameter(param)
	}
	return spec, nil
}

func buildParam(machineName string, p *ParamBlock) (machine.ParamSpec, error) {
	ty, err := paramType(p.Type)
	if err != nil {
		return machine.ParamSpec{}, fmt.Errorf("machine %q: parameter %q: %w", machineName, p.Name, err)
	}
	param := machine.ParamSpec{Name: p.Name, Type: ty, Description: p.Description}

	if p.Default != nil {
		val, diags := p.Default.Value(nil)
		if diags.HasErrors() {
			return machine.ParamSpec{}, fmt.Errorf("machine %q: parameter %q default: %s", machineName, p.Name, diags.Error())
		}
		if !val.IsNull() {
			if ty != cty.NilType {
				converted, err := convert.Convert(val, ty)
				if err != nil {
					return machine.ParamSpec{}, fmt.Errorf("machine %q: parameter %q default: %w", machineName, p.Name, err)
				}
				val = converted
			}
			param.Default = &val
		}
	}
	return param, nil
}

// paramType maps a manifest type token to a cty type. An empty token or
// "any" leaves the parameter untyped.
func paramType(token string) (cty.Type, error) {
	switch token {
	case "", "any":
		return cty.NilType, nil
	case "string":
		return cty.String, nil
	case "number":
		return cty.Number, nil
	case "bool":
		return cty.Bool, nil
	case "list(string)":
		return cty.List(cty.String), nil
	case "map(string)":
		return cty.Map(cty.String), nil
	}
	return cty.NilType, fmt.Errorf("unsupported parameter type %q", token)
}
