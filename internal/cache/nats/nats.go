// Package nats connects the service to an external NATS server or, in builds
// tagged embed_nats, to one running in-process.
package nats

import (
	"errors"
	"log/slog"
	"time"

	"github.com/johbar/tesseract-purego/internal/config"
	"github.com/nats-io/nats.go"
)

var errNatsNotEmbedded = errors.New("NATS has not been embedded in this build")

const clientName = "tesseract-purego"

// SetupNatsConnection connects the service to the NATS server(s) at conf.NatsUrl,
// retrying conf.NatsConnectRetries times.
func SetupNatsConnection(conf config.TesConfig, log *slog.Logger) (*nats.Conn, error) {
	var attempts int

	log.Info("Try connecting to NATS", "url", conf.NatsUrl, "timeoutSecs", conf.NatsTimeout.Seconds())
	for {
		attempts++
		nc, err := nats.Connect(conf.NatsUrl, clientOptions(log, nats.Timeout(conf.NatsTimeout))...)
		if err == nil {
			return nc, nil
		}
		log.Error("Connecting to NATS failed",
			"url", conf.NatsUrl,
			"timeoutSecs", conf.NatsTimeout.Seconds(),
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		if attempts > conf.NatsConnectRetries {
			log.Error("Connecting to NATS failed. Retry count exceeded", "err", err, "maxRetries", conf.NatsConnectRetries)
			return nil, err
		}
		time.Sleep(time.Second)
	}
}

func clientOptions(log *slog.Logger, extra ...nats.Option) []nats.Option {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Disconnected from NATS", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Reconnected to NATS", "url", nc.ConnectedUrlRedacted())
		}),
	}
	return append(opts, extra...)
}

// Drain drains nc and waits until it is closed, at most timeout.
// nats.Conn.Drain itself returns before draining has finished.
func Drain(nc *nats.Conn, timeout time.Duration) error {
	closed := make(chan struct{})
	prev := nc.Opts.ClosedCB
	nc.SetClosedHandler(func(c *nats.Conn) {
		if prev != nil {
			prev(c)
		}
		close(closed)
	})
	if err := nc.Drain(); err != nil {
		return err
	}
	select {
	case <-closed:
		return nil
	case <-time.After(timeout):
		return errors.New("timed out draining NATS connection")
	}
}
