// File: internal/browserdriver/driver.go
// Description: Driver construction. The orchestrator asks for a BrowserDriver
// once at session start; which backend it gets is a configuration concern.
package browserdriver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/config"
)

// New builds the browser driver selected by the configuration.
func New(cfg config.BrowserConfig, logger *zap.Logger) (schemas.BrowserDriver, error) {
	switch cfg.Driver {
	case config.DriverChrome, config.DriverRemote:
		return newChromeDriver(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}
