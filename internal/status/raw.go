package status

import (
	"fmt"
	"strconv"

	"github.com/genricoloni/nowplaying/internal/domain"
)

// MPRIS is the org.mpris.MediaPlayer2.Player PlaybackStatus property value
type MPRIS string

const (
	MPRISPlaying MPRIS = "Playing"
	MPRISPaused  MPRIS = "Paused"
	MPRISStopped MPRIS = "Stopped"
)

// Classify implements domain.RawStatus
func (s MPRIS) Classify() (domain.State, error) {
	switch s {
	case MPRISStopped:
		return domain.StateNone, nil
	case MPRISPlaying:
		return domain.StatePlaying, nil
	case MPRISPaused:
		return domain.StatePaused, nil
	default:
		return domain.StateNone, fmt.Errorf("%w: mpris %q", domain.ErrUnknownStatus, string(s))
	}
}

func (s MPRIS) String() string {
	return string(s)
}

// SMTC is a GlobalSystemMediaTransportControlsSessionPlaybackStatus value
type SMTC int32

const (
	SMTCClosed SMTC = iota
	SMTCOpened
	SMTCChanging
	SMTCStopped
	SMTCPlaying
	SMTCPaused
)

// Classify implements domain.RawStatus
func (s SMTC) Classify() (domain.State, error) {
	switch s {
	case SMTCClosed, SMTCOpened, SMTCChanging, SMTCStopped:
		return domain.StateNone, nil
	case SMTCPlaying:
		return domain.StatePlaying, nil
	case SMTCPaused:
		return domain.StatePaused, nil
	default:
		return domain.StateNone, fmt.Errorf("%w: smtc %d", domain.ErrUnknownStatus, int32(s))
	}
}

func (s SMTC) String() string {
	switch s {
	case SMTCClosed:
		return "Closed"
	case SMTCOpened:
		return "Opened"
	case SMTCChanging:
		return "Changing"
	case SMTCStopped:
		return "Stopped"
	case SMTCPlaying:
		return "Playing"
	case SMTCPaused:
		return "Paused"
	default:
		return "SMTC(" + strconv.Itoa(int(s)) + ")"
	}
}
