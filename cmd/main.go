package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"skarn/internal/events"
	"skarn/internal/manager"
	"skarn/internal/net"
)

// demoInstrument is the single instrument the demo adapter registers at
// startup; a production deployment would load its instrument list from
// configuration instead.
var demoInstrument = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	metrics := events.NewMetrics()
	bus := events.NewBus(0, metrics)
	mgr := manager.New(bus, 0)
	mgr.Register(ctx, demoInstrument)
	defer mgr.Shutdown()

	dispatcher, err := events.NewDispatcher(bus.Subscribe(), 8, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to start event dispatcher")
	}
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	srv := net.New("0.0.0.0", 9001, mgr)

	go srv.Run(ctx)
	<-ctx.Done()
}
