package mpris

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
	signalPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

var (
	nameOwnerRule = []dbus.MatchOption{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchOption("arg0namespace", "org.mpris.MediaPlayer2"),
	}
	propertiesRule = []dbus.MatchOption{
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	}
)

// nameWatch follows player lifecycle and playback status signals and
// reports them as possible active-session changes
type nameWatch struct {
	logger  *zap.Logger
	conn    DBusClient
	notify  func()
	signals chan *dbus.Signal
	done    chan struct{}
	lost    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	err     error

	mu          sync.RWMutex
	playerNames map[string]string // Maps unique bus names (:1.45) to well-known names (org.mpris.MediaPlayer2.spotify)
}

func newNameWatch(logger *zap.Logger, conn DBusClient, notify func()) *nameWatch {
	return &nameWatch{
		logger:      logger,
		conn:        conn,
		notify:      notify,
		signals:     make(chan *dbus.Signal, 10),
		done:        make(chan struct{}),
		lost:        make(chan struct{}),
		playerNames: make(map[string]string),
	}
}

func (w *nameWatch) start() error {
	if err := w.conn.AddMatchSignal(nameOwnerRule...); err != nil {
		return fmt.Errorf("failed to add NameOwnerChanged match signal: %w", err)
	}
	if err := w.conn.AddMatchSignal(propertiesRule...); err != nil {
		return multierr.Append(
			fmt.Errorf("failed to add PropertiesChanged match signal: %w", err),
			w.conn.RemoveMatchSignal(nameOwnerRule...))
	}

	w.detectExistingPlayers()
	w.conn.Signal(w.signals)

	w.wg.Add(1)
	go w.monitorSignals()

	w.logger.Info("Dynamic player tracking enabled via NameOwnerChanged")
	return nil
}

// Unsubscribe stops the signal goroutine and removes the match rules.
// notify is never called once Unsubscribe has returned.
func (w *nameWatch) Unsubscribe() error {
	w.once.Do(func() {
		w.conn.RemoveSignal(w.signals)
		close(w.done)
		w.wg.Wait()
		w.err = multierr.Combine(
			w.conn.RemoveMatchSignal(propertiesRule...),
			w.conn.RemoveMatchSignal(nameOwnerRule...),
		)
		w.logger.Debug("Player tracking stopped", zap.Error(w.err))
	})
	return w.err
}

// Lost is closed when the bus stops delivering signals, which happens when
// the connection ends
func (w *nameWatch) Lost() <-chan struct{} {
	return w.lost
}

// detectExistingPlayers seeds the unique-name map so PropertiesChanged
// senders can be attributed to players
func (w *nameWatch) detectExistingPlayers() {
	names, err := w.conn.ListNames()
	if err != nil {
		w.logger.Warn("Failed to detect existing players", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range names {
		if !strings.HasPrefix(name, playerNamePrefix) {
			continue
		}
		uniqueName, err := w.conn.GetNameOwner(name)
		if err != nil {
			continue
		}
		w.playerNames[uniqueName] = name
		w.logger.Debug("Mapped player name",
			zap.String("unique", uniqueName),
			zap.String("wellKnown", name))
	}
}

func (w *nameWatch) monitorSignals() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case sig, ok := <-w.signals:
			if !ok {
				w.logger.Warn("Signal channel closed, player tracking lost")
				close(w.lost)
				return
			}
			if sig == nil {
				continue
			}
			var changed bool
			switch sig.Name {
			case signalNameOwnerChanged:
				changed = w.handleNameOwnerChanged(sig)
			case signalPropertiesChanged:
				changed = w.handlePropertiesChanged(sig)
			}
			if changed {
				w.notify()
			}
		}
	}
}

// handleNameOwnerChanged tracks player lifecycle. Every appearance or
// removal of a player is a session change.
func (w *nameWatch) handleNameOwnerChanged(sig *dbus.Signal) bool {
	if len(sig.Body) < 3 {
		return false
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, playerNamePrefix) {
		return false // Not an MPRIS player
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case newOwner != "" && oldOwner == "":
		w.playerNames[newOwner] = name
		w.logger.Info("New MPRIS player detected",
			zap.String("player", name),
			zap.String("unique", newOwner))
	case newOwner == "" && oldOwner != "":
		delete(w.playerNames, oldOwner)
		w.logger.Info("MPRIS player removed",
			zap.String("player", name),
			zap.String("unique", oldOwner))
	case newOwner != "" && oldOwner != "":
		delete(w.playerNames, oldOwner)
		w.playerNames[newOwner] = name
		w.logger.Debug("MPRIS player ownership changed",
			zap.String("player", name),
			zap.String("oldUnique", oldOwner),
			zap.String("newUnique", newOwner))
	default:
		return false
	}
	return true
}

// handlePropertiesChanged reports PlaybackStatus changes of known players,
// since a player starting or pausing can change which one is active
func (w *nameWatch) handlePropertiesChanged(sig *dbus.Signal) bool {
	// PropertiesChanged signal has 3 arguments:
	// 1. Interface name (string)
	// 2. Changed properties (map[string]Variant)
	// 3. Invalidated properties ([]string)
	if len(sig.Body) < 2 {
		return false
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerInterface {
		return false
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}
	statusVariant, hasStatus := changedProps["PlaybackStatus"]
	if !hasStatus {
		return false
	}

	player, known := w.getPlayerName(sig.Sender)
	if !known {
		return false
	}

	w.logger.Debug("Player playback status changed",
		zap.String("player", player),
		zap.String("status", fmt.Sprint(statusVariant.Value())))
	return true
}

// getPlayerName returns the well-known player name for a unique bus name
func (w *nameWatch) getPlayerName(uniqueName string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	name, ok := w.playerNames[uniqueName]
	return name, ok
}
