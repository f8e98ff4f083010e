package config

// Persistent state keys (Registry)
const (
	KeyDeviceID     = "device_id"
	KeyPositionMode = "position_mode"
	KeyAutoGuide    = "auto_guide"
	KeyVolume       = "audio_volume"
	KeySimulatedLat = "simulated_lat"
	KeySimulatedLon = "simulated_lon"
	KeyGatePolicy   = "gate_failure_policy"
	KeyGateCooldown = "gate_cooldown"
	KeyNearbyLimit  = "nearby_limit"
)
