//go:build !unix

package journal

import (
	"os"
	"sync"
)

// Without flock support the best available guarantee is process-local
// exclusion.
var fallbackMu sync.Mutex

func lockFile(f *os.File) error {
	fallbackMu.Lock()
	return nil
}

func unlockFile(f *os.File) error {
	fallbackMu.Unlock()
	return nil
}
