package nvim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
)

// ListenAddressEnv names the variable a running Neovim exports for its RPC socket.
const ListenAddressEnv = "NVIM_LISTEN_ADDRESS"

// ErrNoInstance is returned when no running Neovim can be reached.
var ErrNoInstance = errors.New("no running neovim instance")

// Manager handles the connection and interaction with a Neovim instance.
type Manager struct {
	nvim *nvim.Nvim
}

// New connects to the Neovim instance listening on addr. An empty addr
// falls back to NVIM_LISTEN_ADDRESS.
func New(addr string) (*Manager, error) {
	if addr == "" {
		addr = os.Getenv(ListenAddressEnv)
	}
	if addr == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrNoInstance, ListenAddressEnv)
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInstance, err)
	}
	return &Manager{nvim: v}, nil
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
}

// processSequentially is a generic helper function to run a set of jobs sequentially.
func processSequentially[T any](
	items []T,
	processFn func(item T) (path string, success bool),
	progressCb func(int),
) (succeeded, failed []string) {
	if len(items) == 0 {
		return nil, nil
	}

	for i, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}

	return succeeded, failed
}

// OpenFiles opens each path in a buffer of the connected instance.
func (m *Manager) OpenFiles(paths []string, progressCb func(int)) (opened, failed []string) {
	return processSequentially(paths, func(path string) (string, bool) {
		return path, m.openBuffer(path)
	}, progressCb)
}

func (m *Manager) openBuffer(filePath string) bool {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}

	b := m.nvim.NewBatch()
	b.Command(fmt.Sprintf("edit %s", absPath))
	b.Command("setfiletype javascript")
	return b.Execute() == nil
}
