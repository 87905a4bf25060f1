package device

// OutputFunction is the functional type of an output.
type OutputFunction int

// Output functions.
const (
	FunctionOnOff                OutputFunction = 0
	FunctionDimmer               OutputFunction = 1
	FunctionPositional           OutputFunction = 2
	FunctionDimmerColorTemp      OutputFunction = 3
	FunctionFullColorDimmer      OutputFunction = 4
	FunctionBipolar              OutputFunction = 5
	FunctionInternallyControlled OutputFunction = 6
)

// OutputMode is the operating mode of an output.
type OutputMode int

// Output modes.
const (
	ModeDisabled OutputMode = 0
	ModeBinary   OutputMode = 1
	ModeGradual  OutputMode = 2
	ModeDefault  OutputMode = 127
)

// ChannelType identifies a standard output channel. Types 192 to 239 are
// device specific.
type ChannelType int

// Standard channel types.
const (
	ChannelDefault                  ChannelType = 0
	ChannelBrightness               ChannelType = 1
	ChannelHue                      ChannelType = 2
	ChannelSaturation               ChannelType = 3
	ChannelColorTemperature         ChannelType = 4
	ChannelCIEX                     ChannelType = 5
	ChannelCIEY                     ChannelType = 6
	ChannelShadePositionOutside     ChannelType = 11
	ChannelShadePositionIndoor      ChannelType = 12
	ChannelShadeOpeningAngleOutside ChannelType = 13
	ChannelShadeOpeningAngleIndoor  ChannelType = 14
	ChannelTransparency             ChannelType = 15
	ChannelHeatingPower             ChannelType = 21
	ChannelHeatingValve             ChannelType = 22
	ChannelCoolingCapacity          ChannelType = 23
	ChannelCoolingValve             ChannelType = 24
	ChannelAirFlowIntensity         ChannelType = 25
	ChannelAirFlowDirection         ChannelType = 26
	ChannelAirFlapPosition          ChannelType = 27
	ChannelAirLouverPosition        ChannelType = 28
	ChannelAirLouverAuto            ChannelType = 29
	ChannelAirFlowAuto              ChannelType = 30
	ChannelAudioVolume              ChannelType = 41
	ChannelAudioBass                ChannelType = 42
	ChannelAudioTreble              ChannelType = 43
	ChannelAudioBalance             ChannelType = 44
	ChannelWaterTemperature         ChannelType = 51
	ChannelWaterFlow                ChannelType = 52
	ChannelPowerState               ChannelType = 53
	ChannelWindSpeedRate            ChannelType = 54
	ChannelPowerLevel               ChannelType = 55
)

// SceneEffect is the transition used when a scene is applied.
type SceneEffect int

// Scene effects.
const (
	EffectNone     SceneEffect = 0
	EffectSmooth   SceneEffect = 1
	EffectSlow     SceneEffect = 2
	EffectVerySlow SceneEffect = 3
	EffectAlert    SceneEffect = 4
)

// Scene numbers with behaviour of their own. Scenes 0 to 63 are group
// related, 64 to 127 are group independent.
const (
	SceneOff       = 0
	SceneOn        = 5
	SceneDecrement = 11
	SceneIncrement = 12
	SceneMinimum   = 13
	SceneMaximum   = 14
	SceneStop      = 15
	SceneImpulse   = 41
	SceneDeviceOff = 50
	SceneDeviceOn  = 51
	ScenePanic     = 65
	SceneDeepOff   = 68
	SceneAlarm1    = 74
	SceneFire      = 76
	SceneAlarm2    = 83
	SceneAlarm3    = 84
	SceneAlarm4    = 85

	// MaxScene is the highest valid scene number.
	MaxScene = 127
)

// Colour groups used as primaryGroup or output group.
const (
	GroupUndefined   = 0
	GroupLight       = 1
	GroupShade       = 2
	GroupHeating     = 3
	GroupAudio       = 4
	GroupVideo       = 5
	GroupSecurity    = 6
	GroupAccess      = 7
	GroupJoker       = 8
	GroupCooling     = 9
	GroupVentilation = 10
)

// Info holds the common identification properties of a vdSD.
type Info struct {
	DisplayID          string
	Model              string
	ModelVersion       string
	ModelUID           string
	HardwareVersion    string
	HardwareGUID       string
	HardwareModelGUID  string
	VendorName         string
	VendorGUID         string
	OEMGUID            string
	OEMModelGUID       string
	ConfigURL          string
	DeviceIconName     string
	DeviceClass        string
	DeviceClassVersion string
}
