package settings

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// ResolveTrigger maps a run request onto the trigger that gates it and the
// policy it runs with. kind is count, days, all or next; only the values
// offered as buttons are accepted.
func ResolveTrigger(kind string, value, perPage int) (Trigger, types.Policy, error) {
	switch strings.ToLower(kind) {
	case "count":
		switch value {
		case 1000:
			return TriggerSave1000, types.PolicyByCount(value, perPage), nil
		case 10000:
			return TriggerSave10000, types.PolicyByCount(value, perPage), nil
		}
		return "", types.Policy{}, fmt.Errorf("count must be 1000 or 10000, got %d", value)
	case "days":
		switch value {
		case 1:
			return TriggerSave1Day, types.PolicyByDays(1), nil
		case 7:
			return TriggerSave7Day, types.PolicyByDays(7), nil
		}
		return "", types.Policy{}, fmt.Errorf("days must be 1 or 7, got %d", value)
	case "all":
		return TriggerSaveAll, types.PolicyAll(), nil
	case "next":
		switch value {
		case 20:
			return TriggerPreload20, types.PolicyByCount(value, perPage), nil
		case 100:
			return TriggerPreload100, types.PolicyByCount(value, perPage), nil
		}
		return "", types.Policy{}, fmt.Errorf("next must be 20 or 100, got %d", value)
	}
	return "", types.Policy{}, fmt.Errorf("unknown policy %q", kind)
}
