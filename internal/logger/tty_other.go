//go:build !linux

package logger

func isTerminal(uintptr) bool {
	return true
}
