package smtc

// EventToken identifies a registered native event handler
type EventToken int64

// NativeManager mirrors GlobalSystemMediaTransportControlsSessionManager
type NativeManager interface {
	// CurrentSession returns nil when no application owns the current session
	CurrentSession() (NativeSession, error)
	OnCurrentSessionChanged(handler func()) (EventToken, error)
	RemoveCurrentSessionChanged(token EventToken) error
}

// NativeSession mirrors GlobalSystemMediaTransportControlsSession
type NativeSession interface {
	SourceAppUserModelID() (string, error)
	TryGetMediaProperties() (NativeMediaProperties, error)
	// PlaybackStatus is PlaybackInfo.PlaybackStatus
	PlaybackStatus() (int32, error)
	TimelineProperties() (NativeTimeline, error)
	OnMediaPropertiesChanged(handler func()) (EventToken, error)
	RemoveMediaPropertiesChanged(token EventToken) error
}

// NativeMediaProperties mirrors GlobalSystemMediaTransportControlsSessionMediaProperties.
// Every getter is a separate native call and may fail on its own.
type NativeMediaProperties interface {
	Artist() (string, error)
	Title() (string, error)
	AlbumArtist() (string, error)
	AlbumTitle() (string, error)
	Subtitle() (string, error)
	AlbumTrackCount() (int32, error)
	TrackNumber() (int32, error)
}

// NativeTimeline mirrors GlobalSystemMediaTransportControlsSessionTimelineProperties.
// Offsets are TimeSpan ticks, LastUpdatedTime is a DateTime.
type NativeTimeline interface {
	StartTime() (int64, error)
	EndTime() (int64, error)
	MinSeekTime() (int64, error)
	MaxSeekTime() (int64, error)
	Position() (int64, error)
	LastUpdatedTime() (int64, error)
}
