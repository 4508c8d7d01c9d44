// Completion: 100% - Platform-specific module complete
//go:build !((linux || darwin) && amd64)

package main

// HostHooks is only available where generated code can run
func HostHooks() (Hooks, error) {
	return Hooks{}, ErrUnsupportedPlatform
}

// Run is only available where generated code can run
func Run(code CompiledCode, tape []byte, host *Host) error {
	return ErrUnsupportedPlatform
}
