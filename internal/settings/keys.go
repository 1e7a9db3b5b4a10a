package settings

// Flag keys. The names are the persisted keys.
const (
	KeyDisableWhole = "CONFIG_FUNCTION_DISABLE_WHOLE"

	KeyUIAdd1000    = "CONFIG_UI_ADD_1000"
	KeyUIAdd10000   = "CONFIG_UI_ADD_10000"
	KeyUIAdd1Day    = "CONFIG_UI_ADD_1DAY"
	KeyUIAdd7Day    = "CONFIG_UI_ADD_7DAY"
	KeyUIAddAll     = "CONFIG_UI_ADD_ALL"
	KeyUIAddNext20  = "CONFIG_UI_ADD_NEXT20"
	KeyUIAddNext100 = "CONFIG_UI_ADD_NEXT100"

	KeyAutoFeedback    = "CONFIG_AUTOMATION_ENABLE_AUTOFEEDBACK"
	KeyFeedbackDislike = "CONFIG_AUTOMATION_FEEDBACK_DISLIKE"
	KeyGotoLast        = "CONFIG_AUTOMATION_GOTO_LAST"

	KeyRandomInterval = "CONFIG_TUNING_RANDOM_INTERVAL"
	KeyIncreaseRandom = "CONFIG_TUNING_INCREASE_RANDOM"

	KeyEnableLogging      = "CONFIG_LOGGING_ENABLE_LOGGING"
	KeyEnableDebugLogging = "CONFIG_LOGGING_ENABLE_DEBUGLOGGING"
)

// Keys lists every known flag in display order.
var Keys = []string{
	KeyDisableWhole,
	KeyUIAdd1000,
	KeyUIAdd10000,
	KeyUIAdd1Day,
	KeyUIAdd7Day,
	KeyUIAddAll,
	KeyUIAddNext20,
	KeyUIAddNext100,
	KeyAutoFeedback,
	KeyFeedbackDislike,
	KeyGotoLast,
	KeyRandomInterval,
	KeyIncreaseRandom,
	KeyEnableLogging,
	KeyEnableDebugLogging,
}

// Defaults are the values written on first install and by a reset.
var Defaults = map[string]bool{
	KeyDisableWhole:       false,
	KeyUIAdd1000:          true,
	KeyUIAdd10000:         false,
	KeyUIAdd1Day:          true,
	KeyUIAdd7Day:          false,
	KeyUIAddAll:           true,
	KeyUIAddNext20:        true,
	KeyUIAddNext100:       true,
	KeyAutoFeedback:       true,
	KeyFeedbackDislike:    false,
	KeyGotoLast:           false,
	KeyRandomInterval:     false,
	KeyIncreaseRandom:     false,
	KeyEnableLogging:      true,
	KeyEnableDebugLogging: false,
}

// Trigger names one of the run buttons. Each is gated by CONFIG_UI_ADD_<trigger>.
type Trigger string

const (
	TriggerSave1000   Trigger = "1000"
	TriggerSave10000  Trigger = "10000"
	TriggerSave1Day   Trigger = "1DAY"
	TriggerSave7Day   Trigger = "7DAY"
	TriggerSaveAll    Trigger = "ALL"
	TriggerPreload20  Trigger = "NEXT20"
	TriggerPreload100 Trigger = "NEXT100"
)

// Key returns the flag that enables the trigger.
func (t Trigger) Key() string {
	return "CONFIG_UI_ADD_" + string(t)
}

// IsKnown reports whether key is one of the flag keys.
func IsKnown(key string) bool {
	_, ok := Defaults[key]
	return ok
}
