package v1alpha1

import "strings"

// ModuleDescriptor declares a module's identity and its provides/requires contracts.
//
// The id has the form <product>-<version>, e.g. "mod-users-17.1.0".
type ModuleDescriptor struct {
	ID       string                `json:"id"`
	Name     string                `json:"name,omitempty"`
	Provides []InterfaceDescriptor `json:"provides,omitempty"`
	Requires []InterfaceDescriptor `json:"requires,omitempty"`
	Optional []InterfaceDescriptor `json:"optional,omitempty"`
	// Replaces lists products this module supersedes when interface
	// providers are looked up.
	Replaces []string `json:"replaces,omitempty"`
}

type InterfaceDescriptor struct {
	ID string `json:"id"`
	// Version is "MAJOR.MINOR[.SOFTWARE]". For requires and optional
	// references it may hold several alternatives separated by spaces.
	Version       string        `json:"version"`
	InterfaceType InterfaceType `json:"interfaceType,omitempty"`
}

// Exclusive reports whether at most one enabled module may provide the interface.
//
// System interfaces (type "system" or an id starting with "_") and interfaces
// of type "multiple" are shared.
func (i InterfaceDescriptor) Exclusive() bool {
	if strings.HasPrefix(i.ID, "_") {
		return false
	}
	switch i.InterfaceType {
	case InterfaceTypeSystem, InterfaceTypeMultiple:
		return false
	default:
		return true
	}
}

// Product returns the product part of the module id.
func (m ModuleDescriptor) Product() string {
	return ProductOf(m.ID)
}

// ProductOf returns the product part of a module id. A bare product name is
// returned unchanged.
func ProductOf(id string) string {
	if i := versionSeparator(id); i >= 0 {
		return id[:i]
	}
	return id
}

// VersionOf returns the version part of a module id, or "" for a bare product.
func VersionOf(id string) string {
	if i := versionSeparator(id); i >= 0 {
		return id[i+1:]
	}
	return ""
}

// versionSeparator finds the first '-' that is directly followed by a digit.
func versionSeparator(id string) int {
	for i := 0; i+1 < len(id); i++ {
		if id[i] == '-' && id[i+1] >= '0' && id[i+1] <= '9' {
			return i
		}
	}
	return -1
}
