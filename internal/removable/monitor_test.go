package removable

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"mediacat/internal/config"
)

func enabledConfig() *config.Config {
	cfg := config.Default()
	cfg.USB.Enabled = true
	cfg.USB.AutoDetect = true
	return &cfg
}

func TestNewMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := NewMonitor(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("disabled usb returns nil", func(t *testing.T) {
		cfg := enabledConfig()
		cfg.USB.Enabled = false
		if m := NewMonitor(cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when usb.enabled is false")
		}
	})

	t.Run("auto detect off returns nil", func(t *testing.T) {
		cfg := enabledConfig()
		cfg.USB.AutoDetect = false
		if m := NewMonitor(cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when usb.auto_detect is false")
		}
	})

	t.Run("enabled config creates monitor", func(t *testing.T) {
		if m := NewMonitor(enabledConfig(), nil, nil); m == nil {
			t.Fatal("expected non-nil monitor")
		}
	})
}

func TestMonitorLifecycleSafety(t *testing.T) {
	t.Run("nil monitor methods are safe", func(t *testing.T) {
		var m *Monitor
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor: %v", err)
		}
		m.Stop()
		if m.Running() {
			t.Error("nil monitor must not report running")
		}
	})

	t.Run("stop on unstarted monitor is safe", func(t *testing.T) {
		m := NewMonitor(enabledConfig(), nil, nil)
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Error("unstarted monitor must not report running")
		}
	})
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	attach := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	}
	if !matcher.Evaluate(attach) {
		t.Error("expected matcher to accept USB block add event")
	}

	detach := netlink.UEvent{
		Action: netlink.REMOVE,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	}
	if !matcher.Evaluate(detach) {
		t.Error("expected matcher to accept USB block remove event")
	}

	sata := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "ata",
		},
	}
	if matcher.Evaluate(sata) {
		t.Error("expected matcher to reject non-USB bus")
	}

	change := netlink.UEvent{
		Action: netlink.CHANGE,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	}
	if matcher.Evaluate(change) {
		t.Error("expected matcher to reject change action")
	}
}

func TestTranslateEvent(t *testing.T) {
	t.Run("prefers serial over uuid and devnode", func(t *testing.T) {
		event, ok := translateEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env: map[string]string{
				"DEVNAME":     "sdb1",
				"ID_SERIAL":   "SanDisk_Ultra_4C5310",
				"ID_FS_UUID":  "A1B2-C3D4",
				"ID_FS_LABEL": "MUSIC",
			},
		})
		if !ok {
			t.Fatal("expected event to translate")
		}
		if event.Action != ActionAttach {
			t.Errorf("expected attach, got %s", event.Action)
		}
		if event.DeviceID != "SanDisk_Ultra_4C5310" {
			t.Errorf("expected serial as device id, got %s", event.DeviceID)
		}
		if event.DevNode != "/dev/sdb1" {
			t.Errorf("expected /dev/sdb1, got %s", event.DevNode)
		}
		if event.Label != "MUSIC" {
			t.Errorf("expected label MUSIC, got %s", event.Label)
		}
	})

	t.Run("falls back to uuid then devnode", func(t *testing.T) {
		event, ok := translateEvent(netlink.UEvent{
			Action: netlink.REMOVE,
			Env: map[string]string{
				"DEVNAME":    "/dev/sdb1",
				"ID_FS_UUID": "A1B2-C3D4",
			},
		})
		if !ok || event.DeviceID != "A1B2-C3D4" {
			t.Fatalf("expected uuid fallback, got %+v ok=%v", event, ok)
		}

		event, ok = translateEvent(netlink.UEvent{
			Action: netlink.REMOVE,
			Env:    map[string]string{"DEVNAME": "/dev/sdb1"},
		})
		if !ok || event.DeviceID != "/dev/sdb1" {
			t.Fatalf("expected devnode fallback, got %+v ok=%v", event, ok)
		}
	})

	t.Run("drops unidentifiable events", func(t *testing.T) {
		if _, ok := translateEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}}); ok {
			t.Error("expected event without identifier to be dropped")
		}
	})

	t.Run("drops change actions", func(t *testing.T) {
		if _, ok := translateEvent(netlink.UEvent{
			Action: netlink.CHANGE,
			Env:    map[string]string{"DEVNAME": "/dev/sdb1"},
		}); ok {
			t.Error("expected change action to be dropped")
		}
	})

	t.Run("handler receives translated event", func(t *testing.T) {
		var got Event
		m := NewMonitor(enabledConfig(), nil, func(ctx context.Context, event Event) {
			got = event
		})
		m.handleEvent(context.Background(), netlink.UEvent{
			Action: netlink.ADD,
			Env: map[string]string{
				"DEVNAME":   "sdc1",
				"ID_SERIAL": "Kingston_DataTraveler_001",
			},
		})
		if got.DeviceID != "Kingston_DataTraveler_001" || got.Action != ActionAttach {
			t.Fatalf("handler got %+v", got)
		}
	})
}
