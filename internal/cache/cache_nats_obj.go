package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/johbar/tesseract-purego/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type ObjectStoreCache struct {
	jetstream.ObjectStore
	nc  *nats.Conn
	js  jetstream.JetStream
	log *slog.Logger
}

func New(conf config.TesConfig, log *slog.Logger, nc *nats.Conn) (*ObjectStoreCache, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if nc == nil {
		return nil, errors.New("no connection to NATS")
	}
	js, err := setupJetstream(conf, nc, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Storage:     jetstream.FileStorage,
		Bucket:      conf.Bucket,
		Description: "OCR results keyed by image and request hash",
		Compression: true,
		Replicas:    conf.Replicas,
	})
	if err != nil {
		log.Error("Creating NATS object store failed", "err", err)
		return nil, fmt.Errorf("initializing NATS object store: %w", err)
	}
	log.Info("NATS object store initialized.", "bucket", conf.Bucket)
	return &ObjectStoreCache{ObjectStore: store, nc: nc, js: js, log: log}, nil
}

func setupJetstream(conf config.TesConfig, nc *nats.Conn, log *slog.Logger) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		log.Error("Error when initializing NATS JetStream", "err", err)
		return nil, err
	}

	for attempts := 0; attempts <= conf.NatsConnectRetries; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err = js.AccountInfo(ctx)
		cancel()
		if err == nil {
			return js, nil
		}
		if errors.Is(err, jetstream.ErrJetStreamNotEnabled) || errors.Is(err, jetstream.ErrJetStreamNotEnabledForAccount) {
			return nil, err
		}
		log.Error("NATS JetStream check failed. Is JetStream enabled in external NATS server(s)?",
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("retry count exceeded: %w", err)
}

func (store *ObjectStoreCache) GetMetadata(key string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	info, err := store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving object metadata for %s: %w", key, err)
	}
	if info.Metadata == nil {
		return Metadata{}, nil
	}
	return info.Metadata, nil
}

func (store *ObjectStoreCache) StreamBody(key string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	obj, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("retrieving object %s from object store: %w", key, err)
	}
	defer obj.Close()
	_, err = io.Copy(w, obj)
	return err
}

func (store *ObjectStoreCache) Save(e Entry) error {
	m := jetstream.ObjectMeta{Name: e.Key, Metadata: e.Metadata}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := store.ObjectStore.Put(ctx, m, bytes.NewReader(e.Body))
	if err != nil {
		return fmt.Errorf("saving object %s: %w", e.Key, err)
	}
	store.log.Debug("Result cached", "key", e.Key, "size", len(e.Body))
	return nil
}
