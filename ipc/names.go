package ipc

// Signal names broadcast between the frontend and the service.
const (
	PlaybackInitiated      = "playback_initiated"
	ESNChanged             = "esn_changed"
	ReleaseLicense         = "release_license"
	LibraryUpdateRequested = "library_update_requested"
	UpNextAddonInit        = "upnext_data"
	QueueVideoEvent        = "queue_video_event"
	ClearUserIDTokens      = "clean_user_id_tokens"
	ReinitializeMSLHandler = "reinitialize_msl_handler"
	SwitchEventsHandler    = "switch_events_handler"
)
