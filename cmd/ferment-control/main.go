// Command ferment-control drives fermentation heating/cooling relays from
// Tilt hydrometer broadcasts, with one-shot trigger notifications over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/ferment-control/internal/actuator"
	"github.com/sweeney/ferment-control/internal/config"
	"github.com/sweeney/ferment-control/internal/control"
	"github.com/sweeney/ferment-control/internal/engine"
	"github.com/sweeney/ferment-control/internal/journal"
	"github.com/sweeney/ferment-control/internal/logging"
	"github.com/sweeney/ferment-control/internal/mqtt"
	"github.com/sweeney/ferment-control/internal/relay"
	"github.com/sweeney/ferment-control/internal/sensor"
	"github.com/sweeney/ferment-control/internal/status"
	"github.com/sweeney/ferment-control/internal/trigger"
	"github.com/sweeney/ferment-control/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/ferment-control.yaml", "Path to the YAML configuration file")
	journalPath := flag.String("journal", "ferment-journal.db", `SQLite journal path ("off" disables)`)
	actuatorKind := flag.String("actuator", "mqtt", `Relay channel: "mqtt" (Tasmota plugs) or "gpio"`)
	pinHeat := flag.Int("pin-heat", actuator.DefaultPinHeating, "BCM pin for the heating relay (gpio actuator)")
	pinCool := flag.Int("pin-cool", actuator.DefaultPinCooling, "BCM pin for the cooling relay (gpio actuator)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":9090", "HTTP status/metrics address (empty to disable)")
	printConfig := flag.Bool("print-config", false, "Print the resolved configuration and exit")

	flag.Parse()

	if err := run(*configPath, *journalPath, *actuatorKind, *pinHeat, *pinCool, *heartbeat, *httpAddr, *printConfig); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, journalPath, actuatorKind string, pinHeat, pinCool int, heartbeat time.Duration, httpAddr string, printConfig bool) error {
	store, err := config.NewStore(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if printConfig {
		fmt.Print(formatConfig(cfg))
		return nil
	}

	lg, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Sync() //nolint:errcheck

	client, err := mqtt.NewClient(cfg.Broker, "ferment-control")
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	feed, err := sensor.NewMQTTFeed(client, feedColor(cfg.SensorID), lg)
	if err != nil {
		return fmt.Errorf("subscribe sensor: %w", err)
	}
	defer feed.Close()

	channel, err := newChannel(actuatorKind, client, cfg, pinHeat, pinCool, lg)
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer channel.Close()

	publisher := mqtt.NewRealPublisher(client, lg)
	defer publisher.Close()

	var jnl *journal.Journal
	if journalPath != "off" {
		jnl, err = journal.Open(journalPath, lg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()
	}

	// Tracker before STARTUP so the snapshot carries the config.
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:    cfg.TickInterval.Std().Milliseconds(),
		Broker:    cfg.Broker,
		SensorID:  cfg.SensorID,
		LowLimit:  cfg.LowLimit,
		HighLimit: cfg.HighLimit,
		Heating:   cfg.EnableHeating,
		Cooling:   cfg.EnableCooling,
	})
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		lg.Warn("startup event publish failed", zap.Error(err))
	} else {
		lg.Info("published startup event")
	}

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		lg.Info("http status server listening", zap.String("addr", httpAddr))
	}

	eng := engine.New(engine.Deps{
		Store:      store,
		Feed:       feed,
		Dispatcher: relay.NewDispatcher(channel, lg),
		Registry:   trigger.NewRegistry(),
		Publisher:  publisher,
		Results:    channel.Results(),
		Journal:    jnl,
		Tracker:    tracker,
		Logger:     lg,
		Interval:   cfg.TickInterval.Std(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	lg.Info("started",
		zap.String("config", configPath),
		zap.String("broker", cfg.Broker),
		zap.String("actuator", actuatorKind),
		zap.Duration("tick", cfg.TickInterval.Std()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var hbCh <-chan time.Time
	if heartbeat > 0 {
		hbTicker := time.NewTicker(heartbeat)
		defer hbTicker.Stop()
		hbCh = hbTicker.C
	}

	for {
		select {
		case s := <-sigCh:
			lg.Info("shutting down", zap.String("signal", s.String()))
			cancel()
			tracker.SetMQTTConnected(publisher.IsConnected())
			snap := tracker.Snapshot()
			shutdown := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "SHUTDOWN",
				Reason:     signalName(s),
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName(s)),
			}
			if err := publisher.PublishSystem(shutdown); err != nil {
				lg.Warn("shutdown event publish failed", zap.Error(err))
			}
			return nil

		case <-hbCh:
			tracker.SetMQTTConnected(publisher.IsConnected())
			snap := tracker.Snapshot()
			hb := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hb); err != nil {
				lg.Warn("heartbeat publish failed", zap.Error(err))
			}
		}
	}
}

// newChannel selects the relay command channel. The default is Tasmota
// smart plugs over MQTT; -actuator=gpio drives relays wired to the Pi
// directly.
func newChannel(kind string, client paho.Client, cfg *config.Config, pinHeat, pinCool int, lg *zap.Logger) (actuator.Channel, error) {
	switch kind {
	case "mqtt":
		return actuator.NewMQTTChannel(client, map[control.RelayID]string{
			control.RelayHeating: cfg.HeatingPlug,
			control.RelayCooling: cfg.CoolingPlug,
		}, lg)
	case "gpio":
		return actuator.NewGPIOChannel(pinHeat, pinCool)
	default:
		return nil, fmt.Errorf("unknown actuator %q", kind)
	}
}

// feedColor maps the configured sensor to a Tilt topic color. With no
// sensor assigned we still listen on every color so manual test broadcasts
// show up in status output.
func feedColor(sensorID string) string {
	if sensorID == "" {
		return "+"
	}
	return sensorID
}

func formatConfig(cfg *config.Config) string {
	return fmt.Sprintf(
		"broker: %s\nsensor: %s\ntick: %s\nband: %.2f..%.2f\nheating: %v (%s)\ncooling: %v (%s)\n",
		cfg.Broker, orNone(cfg.SensorID), cfg.TickInterval.Std(),
		cfg.LowLimit, cfg.HighLimit,
		cfg.EnableHeating, cfg.HeatingPlug,
		cfg.EnableCooling, cfg.CoolingPlug)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
