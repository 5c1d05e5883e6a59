package removable

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"mediacat/internal/config"
	"mediacat/internal/logging"
)

// Action distinguishes attach from detach events.
type Action string

const (
	ActionAttach Action = "attach"
	ActionDetach Action = "detach"
)

// Event describes a removable block device appearing or disappearing.
type Event struct {
	Action   Action
	DeviceID string
	DevNode  string
	Label    string
}

// Handler receives attach/detach events from the monitor.
type Handler func(ctx context.Context, event Event)

// Monitor listens for udev netlink events and reports USB block devices as
// they come and go. The device identifier it surfaces is what the catalog
// records in usb_device_id.
type Monitor struct {
	cfg     *config.Config
	logger  *slog.Logger
	handler Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a USB monitor. Returns nil when removable handling is
// disabled in the configuration, which callers treat as "no monitor".
func NewMonitor(cfg *config.Config, logger *slog.Logger, handler Handler) *Monitor {
	if cfg == nil || !cfg.USB.Enabled || !cfg.USB.AutoDetect {
		return nil
	}
	return &Monitor{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "removable"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events. A failure to open the
// netlink socket is non-fatal: the daemon runs without attach detection.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("cannot open netlink socket; removable detection unavailable",
			logging.Args(logging.Error(err))...)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("removable monitor started")
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("removable monitor stopped")
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Args(logging.Error(err))...)
		}
	}
}

// buildMatcher selects whole USB block devices appearing or disappearing:
// ACTION=add|remove, SUBSYSTEM=block, ID_BUS=usb.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	event, ok := translateEvent(uevent)
	if !ok {
		m.logger.Debug("ignoring unidentifiable udev event",
			logging.Args(
				logging.String("action", string(uevent.Action)),
				logging.String("kobj", uevent.KObj),
			)...)
		return
	}

	m.logger.Info("removable device "+string(event.Action)+"ed",
		logging.Args(
			logging.String("device_id", event.DeviceID),
			logging.String("devnode", event.DevNode),
		)...)

	if m.handler != nil {
		m.handler(ctx, event)
	}
}

// translateEvent maps a raw uevent into an attach/detach Event. Events with
// no stable identifier and no device node are dropped.
func translateEvent(uevent netlink.UEvent) (Event, bool) {
	var action Action
	switch uevent.Action {
	case netlink.ADD:
		action = ActionAttach
	case netlink.REMOVE:
		action = ActionDetach
	default:
		return Event{}, false
	}

	devnode := uevent.Env["DEVNAME"]
	if devnode != "" && !strings.HasPrefix(devnode, "/dev/") {
		devnode = "/dev/" + devnode
	}
	id := deviceIdentifier(uevent.Env, devnode)
	if id == "" {
		return Event{}, false
	}

	return Event{
		Action:   action,
		DeviceID: id,
		DevNode:  devnode,
		Label:    uevent.Env["ID_FS_LABEL"],
	}, true
}

// deviceIdentifier prefers the stable serial over the filesystem UUID, then
// falls back to the device node. Serials survive reformatting, which is what
// resume_on_reconnect needs.
func deviceIdentifier(env map[string]string, devnode string) string {
	for _, key := range []string{"ID_SERIAL", "ID_SERIAL_SHORT", "ID_FS_UUID"} {
		if v := strings.TrimSpace(env[key]); v != "" {
			return v
		}
	}
	return devnode
}
