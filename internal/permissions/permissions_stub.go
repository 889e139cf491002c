//go:build !darwin

package permissions

// EnsurePermissions is a no-op on platforms without permission dialogs
func EnsurePermissions() error {
	return nil
}
