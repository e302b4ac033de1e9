package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// UserError is returned for every planning failure caused by the request or
// the catalog contents. Its message is shown to the API caller as is.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// IsUserError reports whether err or any error it wraps is a *UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

func userErrorf(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

func joinViolations(msgs []string) *UserError {
	return &UserError{Message: strings.Join(msgs, ". ")}
}

func msgModuleNotFound(id string) string {
	return fmt.Sprintf("Module %s not found", id)
}

func msgInterfaceNotFound(iface, moduleID string) string {
	return fmt.Sprintf("interface %s required by module %s not found", iface, moduleID)
}

func msgMultipleProducts(iface, moduleID string, products []string) string {
	return fmt.Sprintf("interface %s required by module %s is provided by multiple products: %s",
		iface, moduleID, strings.Join(products, ", "))
}

func msgIncompatible(moduleID, iface, need, have, providerID string) string {
	return fmt.Sprintf("Incompatible version for module %s interface %s. Need %s. Have %s/%s",
		moduleID, iface, need, have, providerID)
}

func msgMultipleModules(ids []string, iface string) string {
	return fmt.Sprintf("Multiple modules %s provide interface %s", strings.Join(ids, ", "), iface)
}

func msgExplicitlyGiven(id string) string {
	return fmt.Sprintf("Cannot remove module %s which is explicitly given", id)
}
