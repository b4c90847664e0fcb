package libvirt

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/terabiome/mkcloud/internal/runtime"
	"libvirt.org/go/libvirt"
)

type ConnectionManager struct {
	conn   *libvirt.Connect
	mu     sync.Mutex
	uri    string
	logger *slog.Logger
}

// NewConnectionManager does not dial; the first GetHypervisor call connects.
func NewConnectionManager(uri string, logger *slog.Logger) *ConnectionManager {
	return &ConnectionManager{
		uri:    uri,
		logger: logger,
	}
}

// GetHypervisor returns the connection wrapped for the provisioning code. The
// caller holds the connection until it calls the returned unlock func.
func (cm *ConnectionManager) GetHypervisor() (runtime.HypervisorContext, func(), error) {
	cm.mu.Lock()

	if cm.conn == nil {
		if err := cm.reconnect(); err != nil {
			cm.mu.Unlock()
			return runtime.HypervisorContext{}, nil, err
		}
	} else if alive, err := cm.conn.IsAlive(); err != nil || !alive {
		cm.logger.Warn("connection unhealthy, attempting reconnect")
		if err := cm.reconnect(); err != nil {
			cm.mu.Unlock()
			return runtime.HypervisorContext{}, nil, err
		}
	}

	unlock := func() { cm.mu.Unlock() }
	return runtime.HypervisorContext{
		URI:  cm.uri,
		Conn: NewHypervisor(cm.conn),
	}, unlock, nil
}

func (cm *ConnectionManager) reconnect() error {
	if cm.conn != nil {
		cm.conn.Close()
		cm.conn = nil
	}

	conn, err := libvirt.NewConnect(cm.uri)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}

	cm.conn = conn
	cm.logger.Info("libvirt connection established", slog.String("uri", cm.uri))
	return nil
}

func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn != nil {
		cm.logger.Info("closing libvirt connection")
		_, err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}
