//go:build embed_nats

package nats

import (
	"errors"
	"log/slog"
	"time"

	tesconfig "github.com/johbar/tesseract-purego/internal/config"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const NatsEmbedded bool = true

// ConnectToEmbeddedNatsServer starts a JetStream enabled server in this process.
// The server shuts down when the returned connection is closed.
func ConnectToEmbeddedNatsServer(conf tesconfig.TesConfig, log *slog.Logger) (*nats.Conn, error) {
	ns, err := server.NewServer(
		&server.Options{
			ServerName: clientName,
			JetStream:  true,
			MaxPayload: conf.NatsMaxPayload,
			TLS:        false,
			DontListen: !conf.ExposeNats,
			Host:       conf.NatsHost,
			Port:       conf.NatsPort,
			StoreDir:   conf.NatsStoreDir,
		})
	if err != nil {
		return nil, err
	}
	ns.ConfigureLogger()
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS not ready")
	}
	log.Info("Embedded NATS server started", "exposed", conf.ExposeNats, "storeDir", conf.NatsStoreDir)

	nc, err := nats.Connect("", clientOptions(log,
		nats.InProcessServer(ns),
		nats.ClosedHandler(func(*nats.Conn) { ns.Shutdown() }))...)
	if err != nil {
		ns.Shutdown()
		return nil, err
	}
	return nc, nil
}
