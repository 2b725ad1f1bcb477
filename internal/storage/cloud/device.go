package cloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const deviceIDFileName = "device-id"

// DeviceID returns this installation's stable identifier, generating and
// persisting one on first use. The id stamps every write so the realtime
// feed can tell remote changes apart from our own echoes.
func (p *Provider) DeviceID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deviceID != "" {
		return p.deviceID, nil
	}

	path := filepath.Join(p.config.DataDir, deviceIDFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			p.deviceID = id
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(p.config.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	p.deviceID = id
	return id, nil
}
