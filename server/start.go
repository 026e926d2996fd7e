package teachtiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	To "github.com/maroda/teachtiles/obvy"
	Tp "github.com/maroda/teachtiles/plugin"
)

const (
	journalBatch    = 32
	shutdownTimeout = 5 * time.Second
)

// OpenInput opens the MIDI byte source named in the config
func OpenInput(c InputConfig) (Tp.ByteSource, error) {
	switch c.Source {
	case "serial":
		return Tp.OpenSerialSource(c.Device, c.Baud)
	case "midi":
		return Tp.OpenMIDISource(c.Device)
	case "stdin", "-":
		return Tp.NewReaderSource(io.NopCloser(os.Stdin), "stdin"), nil
	default:
		return nil, fmt.Errorf("unknown input source %q", c.Source)
	}
}

// OpenJournal returns nil when no path is configured
func OpenJournal(path string) (Tp.NoteJournal, error) {
	if path == "" {
		return nil, nil
	}
	j, err := Tp.NewBadgerJournal(path, journalBatch)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// NewBridgeFromConfig opens the input, the transport and the journal
func NewBridgeFromConfig(c *ConfigFile, stats *To.StatsInternal) (*Bridge, error) {
	transport, err := Tp.TransportLookup(string(c.Transport), Tp.TransportOptions{
		LinkDevice:   c.Link.Device,
		LinkBaud:     c.Link.Baud,
		DatagramAddr: c.Datagram.Addr,
	})
	if err != nil {
		slog.Error("Could not open transport", slog.String("transport", string(c.Transport)), slog.Any("error", err))
		return nil, fmt.Errorf("transport: %w", err)
	}

	src, err := OpenInput(c.Input)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("input: %w", err)
	}

	dispatcher := NewDispatcher(transport, stats)
	journal, err := OpenJournal(c.Journal)
	if err != nil {
		src.Close()
		transport.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if journal != nil {
		dispatcher.Journal = journal
	}

	return NewBridge(src, NewTracker(c.WatchdogMS), dispatcher, stats), nil
}

// Close releases the input first so nothing new arrives, then the transport and journal
func (b *Bridge) Close() error {
	var errs []error
	if b.Source != nil {
		errs = append(errs, b.Source.Close())
	}
	if b.Dispatcher != nil {
		if b.Dispatcher.Transport != nil {
			errs = append(errs, b.Dispatcher.Transport.Close())
		}
		if b.Dispatcher.Journal != nil {
			errs = append(errs, b.Dispatcher.Journal.Close())
		}
	}
	return errors.Join(errs...)
}

// ServeHTTP runs handler on addr until ctx ends
func ServeHTTP(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting TeachTiles web server...", slog.String("Port", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start web server", slog.Any("Error", err))
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// StartBridge runs the loop and the web server until ctx ends or the input closes
func StartBridge(ctx context.Context, b *Bridge, addr string, tick time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)
	go func() {
		webErr <- ServeHTTP(ctx, addr, b.SetupMux())
	}()

	err := b.Run(ctx, tick)
	cancel()
	if werr := <-webErr; werr != nil {
		slog.Error("Web server stopped", slog.Any("error", werr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
