package bridgespec

import "fmt"

// Device types understood by the rule templates. These are the openWB
// component types whose topics a bridge typically mirrors.
const (
	DeviceController  = "controller"
	DeviceCounter     = "counter"
	DeviceChargepoint = "chargepoint"
	DevicePV          = "pv"
	DeviceBattery     = "bat"
)

// rootTopic is the openWB topic namespace.
const rootTopic = "openWB"

// RulesForDevice returns the canonical topic rules for one device.
//
// Readings flow in from the wallbox controller; command topics for
// controllable devices flow out to it. The id is interpolated into the
// topic paths the controller publishes under, so operators declare
// devices instead of maintaining literal per-device topic lines.
//
// Parameters:
//   - deviceType: One of the Device* constants
//   - id: The numeric device id assigned by the controller
//
// Returns:
//   - []TopicRule: Generated rules (QoS unset, bridge default applies)
//   - error: If the device type is unknown
func RulesForDevice(deviceType string, id int) ([]TopicRule, error) {
	switch deviceType {
	case DeviceController:
		// The controller's own state has no numeric id in its topics.
		return []TopicRule{
			{Filter: fmt.Sprintf("%s/general/#", rootTopic), Direction: In, QoS: QoSUnset},
			{Filter: fmt.Sprintf("%s/optional/#", rootTopic), Direction: In, QoS: QoSUnset},
			{Filter: fmt.Sprintf("%s/set/general/#", rootTopic), Direction: Out, QoS: QoSUnset},
		}, nil

	case DeviceChargepoint:
		return []TopicRule{
			{Filter: fmt.Sprintf("%s/chargepoint/%d/get/#", rootTopic, id), Direction: In, QoS: QoSUnset},
			{Filter: fmt.Sprintf("%s/set/chargepoint/%d/#", rootTopic, id), Direction: Out, QoS: QoSUnset},
		}, nil

	case DeviceCounter:
		return []TopicRule{
			{Filter: fmt.Sprintf("%s/counter/%d/get/#", rootTopic, id), Direction: In, QoS: QoSUnset},
		}, nil

	case DevicePV:
		return []TopicRule{
			{Filter: fmt.Sprintf("%s/pv/%d/get/#", rootTopic, id), Direction: In, QoS: QoSUnset},
		}, nil

	case DeviceBattery:
		return []TopicRule{
			{Filter: fmt.Sprintf("%s/bat/%d/get/#", rootTopic, id), Direction: In, QoS: QoSUnset},
		}, nil

	default:
		return nil, fmt.Errorf("unknown device type %q", deviceType)
	}
}
