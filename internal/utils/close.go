package utils

import (
	"io"

	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// CloseLogged closes c and logs a failure at warn level. A nil c is a no-op.
func CloseLogged(c io.Closer, log logger.Logger, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+what, logger.Error(err))
	}
}
