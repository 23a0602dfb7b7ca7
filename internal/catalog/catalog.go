// Package catalog reads product catalogs that modules ship alongside their
// code. A catalog is a YAML or CUE file with a top-level products list:
//
//	products:
//	  - id: 3f1c9c0e-6a54-4f5e-9d33-2b1c6f0f9a11
//	    module: hats
//	    name: top-hat
//	    display_name: Top Hat
//	    melons_cost: 25
//
// Products are active unless the entry says otherwise.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lanatus/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

// LoadError reports a catalog that could not be read. Pos is set when the
// underlying parser knows where the problem is.
type LoadError struct {
	Path    string
	Pos     token.Pos
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

type file struct {
	Products []entry `yaml:"products" json:"products"`
}

type entry struct {
	ID          string `yaml:"id" json:"id"`
	Module      string `yaml:"module" json:"module"`
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	MelonsCost  int64  `yaml:"melons_cost" json:"melons_cost"`
	Active      *bool  `yaml:"active" json:"active"`
	Permanent   bool   `yaml:"permanent" json:"permanent"`
}

// Load reads the catalog at path. The format follows the extension:
// .yaml and .yml are YAML, .cue is CUE checked against the catalog schema.
func Load(path string) ([]ledger.ProductRegistration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read catalog", Err: err}
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err = decodeYAML(path, data)
	case ".cue":
		f, err = decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("unsupported catalog extension %q", ext)}
	}
	if err != nil {
		return nil, err
	}

	regs := make([]ledger.ProductRegistration, 0, len(f.Products))
	for i, e := range f.Products {
		reg, err := e.registration()
		if err != nil {
			return nil, &LoadError{Path: path, Message: fmt.Sprintf("products[%d]: %v", i, err), Err: err}
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// LoadAll reads every catalog in paths, in order. A product id appearing
// twice across the catalogs is an error.
func LoadAll(paths ...string) ([]ledger.ProductRegistration, error) {
	var all []ledger.ProductRegistration
	seen := make(map[uuid.UUID]string)
	for _, path := range paths {
		regs, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, reg := range regs {
			if prev, ok := seen[reg.ID]; ok {
				return nil, &LoadError{Path: path, Message: fmt.Sprintf("product %s already defined in %s", reg.ID, prev)}
			}
			seen[reg.ID] = path
		}
		all = append(all, regs...)
	}
	return all, nil
}

func decodeYAML(path string, data []byte) (file, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return file{}, &LoadError{Path: path, Message: fmt.Sprintf("failed to parse YAML: %v", err), Err: err}
	}
	return f, nil
}

func decodeCUE(path string, data []byte) (file, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return file{}, fmt.Errorf("catalog schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return file{}, cueError(path, "failed to compile CUE", err)
	}

	catalog := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(v)
	if err := catalog.Validate(cue.Concrete(true)); err != nil {
		return file{}, cueError(path, "catalog does not match schema", err)
	}

	var f file
	if err := catalog.Decode(&f); err != nil {
		return file{}, cueError(path, "failed to decode catalog", err)
	}
	return f, nil
}

func cueError(path, msg string, err error) *LoadError {
	le := &LoadError{Path: path, Message: msg, Err: err}
	if list := cueerrors.Errors(err); len(list) > 0 {
		le.Pos = list[0].Position()
		le.Message = fmt.Sprintf("%s: %v", msg, list[0])
	}
	return le
}

func (e entry) registration() (ledger.ProductRegistration, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return ledger.ProductRegistration{}, fmt.Errorf("invalid id %q: %w", e.ID, err)
	}
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	reg := ledger.ProductRegistration{
		ID:          id,
		Module:      e.Module,
		Name:        e.Name,
		DisplayName: e.DisplayName,
		Description: e.Description,
		Icon:        e.Icon,
		MelonsCost:  e.MelonsCost,
		Active:      active,
		Permanent:   e.Permanent,
	}
	return reg, reg.Validate()
}
