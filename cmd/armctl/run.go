package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/bus/natsbus"
	"github.com/gwillem/armctl/pkg/bus/servobus"
	"github.com/gwillem/armctl/pkg/bus/simbus"
	"github.com/gwillem/armctl/pkg/command"
	"github.com/gwillem/armctl/pkg/config"
	"github.com/gwillem/armctl/pkg/console"
	"github.com/gwillem/armctl/pkg/control"
	"github.com/gwillem/armctl/pkg/httpapi"
	"github.com/gwillem/armctl/pkg/logging"
	"github.com/gwillem/armctl/pkg/robot"
)

type RunCommand struct {
	Transport string        `long:"transport" choice:"nats" choice:"servo" choice:"sim" description:"Robot bus (default from config)"`
	Interval  time.Duration `long:"interval" description:"Control period (default from config)"`
	TUI       bool          `long:"tui" description:"Full-screen console with a live chart of joint targets"`
	HTTP      string        `long:"http" description:"Serve the operator API on this address"`
	NoConsole bool          `long:"no-console" description:"Do not read commands from stdin"`

	Args struct {
		Interface string `positional-arg-name:"interface" description:"Network interface, NATS address or serial port"`
	} `positional-args:"yes" required:"yes"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	session := uuid.NewString()
	logger = logger.With(zap.String("session", session))

	reg := robot.DefaultRegistry()
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := control.NewMetrics(promReg)

	transport, err := openTransport(cfg, c.Args.Interface, reg, session, logger)
	if err != nil {
		return fmt.Errorf("open %s transport on %s: %w", cfg.Transport.Kind, c.Args.Interface, err)
	}
	defer transport.Close()

	queue := &command.Queue{}
	state := control.NewState()
	mirror := &control.Mirror{}
	if err := transport.Subscribe(mirror.Deliver); err != nil {
		return fmt.Errorf("subscribe to robot state: %w", err)
	}

	loop, err := control.NewLoop(control.Config{
		Registry:  reg,
		Queue:     queue,
		State:     state,
		Mirror:    mirror,
		Publisher: transport,
		Interval:  cfg.Control.Interval.Duration(),
		Defaults:  cfg.Control.Defaults(),
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	dispatcher := console.NewDispatcher(reg, queue, state, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// runCtx ends with the loop, so input surfaces return on a remote quit.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
		cancelRun()
	}()

	logger.Info("controller started",
		zap.String("transport", cfg.Transport.Kind),
		zap.String("interface", c.Args.Interface),
		zap.Duration("interval", loop.Interval()),
	)

	httpDone := make(chan struct{})
	if cfg.HTTP.Listen != "" {
		srv := httpapi.New(httpapi.Config{Listen: cfg.HTTP.Listen, Session: session}, dispatcher, loop, reg, promReg, logger)
		go func() {
			defer close(httpDone)
			if err := srv.Start(runCtx); err != nil {
				logger.Error("http api", zap.Error(err))
			}
		}()
	} else {
		close(httpDone)
	}

	var inputErr error
	switch {
	case c.TUI:
		inputErr = runTUI(runCtx, dispatcher, loop, reg, cfg.Transport.Kind, c.Args.Interface)
	case !c.NoConsole:
		fmt.Printf("Motor controller ready on %s (%s)\n", c.Args.Interface, cfg.Transport.Kind)
		inputErr = console.New(dispatcher, os.Stdin, os.Stdout).Run(runCtx)
	default:
		<-runCtx.Done()
	}
	state.Stop()

	loopErr := <-loopDone
	<-httpDone
	logger.Info("controller stopped")

	return errors.Join(inputErr, loopErr)
}

func (c *RunCommand) applyOverrides(cfg *config.Config) {
	if c.Transport != "" {
		cfg.Transport.Kind = c.Transport
	}
	if c.Interval > 0 {
		cfg.Control.Interval = config.Duration(c.Interval)
	}
	if c.HTTP != "" {
		cfg.HTTP.Listen = c.HTTP
	}
	// The full-screen console owns the terminal.
	if c.TUI && (cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout") {
		cfg.Logging.Output = "armctl.log"
	}
}

func openTransport(cfg *config.Config, iface string, reg *robot.Registry, session string, logger *zap.Logger) (bus.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportNATS:
		return natsbus.Connect(natsbus.Config{
			URL:            natsbus.URLFor(iface),
			ArmSubject:     cfg.Transport.NATS.ArmSubject,
			StateSubject:   cfg.Transport.NATS.StateSubject,
			ConnectTimeout: cfg.Transport.NATS.ConnectTimeout.Duration(),
			Session:        session,
			Logger:         logger,
		})
	case config.TransportServo:
		return servobus.Open(servobus.Config{
			Port:         iface,
			BaudRate:     cfg.Transport.Servo.BaudRate,
			PollInterval: cfg.Transport.Servo.PollInterval.Duration(),
			Calibration:  cfg.Transport.Servo.Calibration,
			Logger:       logger,
		}, reg)
	case config.TransportSim:
		return simbus.New(simbus.Config{}), nil
	}
	return nil, fmt.Errorf("%w: unknown transport %q", bus.ErrTransportUnavailable, cfg.Transport.Kind)
}
