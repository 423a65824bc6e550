//go:build !embed_nats

package nats

import (
	"log/slog"

	tesconfig "github.com/johbar/tesseract-purego/internal/config"
	"github.com/nats-io/nats.go"
)

const NatsEmbedded bool = false

func ConnectToEmbeddedNatsServer(_ tesconfig.TesConfig, _ *slog.Logger) (*nats.Conn, error) {
	return nil, errNatsNotEmbedded
}
