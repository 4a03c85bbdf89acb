package keeper

import (
	"fmt"
	"os"
	"path/filepath"

	ps "github.com/mitchellh/go-ps"
)

// DefaultLabel derives a client label from the running executable's name.
func DefaultLabel() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return "credkeeper-client"
	}
	return filepath.Base(exe)
}

// AttributedLabel extends DefaultLabel with the name of the parent process,
// which tells the keeper's logs who launched the holder when it runs under
// a scheduler or a wrapper script.
func AttributedLabel() string {
	label := DefaultLabel()
	parent, err := ps.FindProcess(os.Getppid())
	if err != nil || parent == nil {
		return label
	}
	return fmt.Sprintf("%s (via %s)", label, parent.Executable())
}
