//go:build !linux && !darwin

package rawfile

func hasExtendedAttributes(string) bool { return false }
