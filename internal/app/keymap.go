package app

// Key binding constants used in handleKey.
const (
	KeyQuit           = "q"
	KeyQuitUpper      = "Q"
	KeyCtrlC          = "ctrl+c"
	KeySpace          = " "
	KeyReset          = "r"
	KeyToggleVoice    = "v"
	KeyCycleMode      = "m"
	KeyCycleCountdown = "c"
	KeySimulate       = "u"
)
