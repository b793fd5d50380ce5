package vmerrors

import "os"

// abortExit is the real-process default for AbortFunc.
func abortExit(code int) {
	os.Exit(code)
}
