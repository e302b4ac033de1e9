// Package catalog decodes module catalogs, enabled sets and install requests
// from YAML or JSON documents.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/okapi-platform/okapi/api/v1alpha1"
)

// ParseModules decodes a list of module descriptors.
func ParseModules(data []byte) ([]v1alpha1.ModuleDescriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var mds []v1alpha1.ModuleDescriptor
	if err := yaml.UnmarshalStrict(data, &mds); err != nil {
		return nil, fmt.Errorf("catalog: decode modules: %w", err)
	}
	for i, md := range mds {
		if md.ID == "" {
			return nil, fmt.Errorf("catalog: module %d has no id", i)
		}
	}
	return mds, nil
}

// ParseCatalog decodes a module list into a catalog keyed by module id.
func ParseCatalog(data []byte) (v1alpha1.Catalog, error) {
	mds, err := ParseModules(data)
	if err != nil {
		return nil, err
	}
	out := make(v1alpha1.Catalog, len(mds))
	for _, md := range mds {
		if _, ok := out[md.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate module %s", md.ID)
		}
		out[md.ID] = md
	}
	return out, nil
}

// ParseEnabled decodes a module list into an enabled set keyed by product.
func ParseEnabled(data []byte) (v1alpha1.EnabledModules, error) {
	mds, err := ParseModules(data)
	if err != nil {
		return nil, err
	}
	out := make(v1alpha1.EnabledModules, len(mds))
	for _, md := range mds {
		product := md.Product()
		if prev, ok := out[product]; ok {
			return nil, fmt.Errorf("catalog: product %s enabled twice (%s, %s)", product, prev.ID, md.ID)
		}
		out[product] = md
	}
	return out, nil
}

// ParseRequest decodes an install request.
func ParseRequest(data []byte) ([]v1alpha1.TenantModuleDescriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var tms []v1alpha1.TenantModuleDescriptor
	if err := yaml.UnmarshalStrict(data, &tms); err != nil {
		return nil, fmt.Errorf("catalog: decode request: %w", err)
	}
	for i, tm := range tms {
		if tm.ID == "" {
			return nil, fmt.Errorf("catalog: request entry %d has no id", i)
		}
		if !tm.Action.Valid() {
			return nil, fmt.Errorf("catalog: request entry %s: unknown action %q", tm.ID, tm.Action)
		}
	}
	return tms, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (v1alpha1.Catalog, error) {
	return loadFile(path, ParseCatalog)
}

// LoadEnabledFile reads an enabled set from path. An empty path yields an
// empty set.
func LoadEnabledFile(path string) (v1alpha1.EnabledModules, error) {
	if path == "" {
		return v1alpha1.EnabledModules{}, nil
	}
	return loadFile(path, ParseEnabled)
}

// LoadRequestFile reads an install request from path.
func LoadRequestFile(path string) ([]v1alpha1.TenantModuleDescriptor, error) {
	if path == "" {
		return nil, nil
	}
	return loadFile(path, ParseRequest)
}

// LoadRequestReader reads an install request from r.
func LoadRequestReader(r io.Reader) ([]v1alpha1.TenantModuleDescriptor, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read request: %w", err)
	}
	return ParseRequest(content)
}

func loadFile[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	content, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	out, err := parse(content)
	if err != nil {
		return zero, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return out, nil
}

// MarshalActions encodes a plan as YAML, or as indented JSON when asJSON is
// set.
func MarshalActions(actions []v1alpha1.TenantModuleDescriptor, asJSON bool) ([]byte, error) {
	if actions == nil {
		actions = []v1alpha1.TenantModuleDescriptor{}
	}
	var (
		out []byte
		err error
	)
	if asJSON {
		out, err = json.MarshalIndent(actions, "", "  ")
	} else {
		out, err = yaml.Marshal(actions)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: encode plan: %w", err)
	}
	return out, nil
}
