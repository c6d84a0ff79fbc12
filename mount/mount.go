package mount

// Axis identifies one of the two driven axes.
type Axis int

const (
	RA Axis = iota
	Dec
)

func (a Axis) String() string {
	switch a {
	case RA:
		return "RA"
	case Dec:
		return "DEC"
	}
	return "UNKNOWN"
}

// Rate is an axis rate in 1/15000 of a rotation per reference day.
// The reference day is sidereal for RA and solar for DEC.
type Rate int32

const (
	RatesPerCycle = 15000.0

	MaxRate Rate = 450000
	MinRate Rate = 150

	DefaultGuideRate Rate = 7500
)

// Cycles returns the rate in rotations per reference day.
func (r Rate) Cycles() float64 {
	return float64(r) / RatesPerCycle
}

// RateFromCycles truncates toward zero.
func RateFromCycles(cycles float64) Rate {
	return Rate(cycles * RatesPerCycle)
}

// ClampRate limits r to [-MaxRate, MaxRate] and snaps anything with a
// magnitude below MinRate to zero.
func ClampRate(r Rate) Rate {
	switch {
	case r > MaxRate:
		return MaxRate
	case r >= MinRate:
		return r
	case r > -MinRate:
		return 0
	case r >= -MaxRate:
		return r
	}
	return -MaxRate
}

// TrackingMode is off (0), normal (>0) or reverse (<0).
// Any non-zero mode adds one rotation per sidereal day to RA; the sign only
// changes the label.
type TrackingMode int8

func (t TrackingMode) Label() string {
	switch {
	case t > 0:
		return "T/N"
	case t < 0:
		return "T/W"
	}
	return "   "
}

type GuideDirection uint8

const (
	GuideNone  GuideDirection = 0
	GuideNorth GuideDirection = 1
	GuideSouth GuideDirection = 2
	GuideEast  GuideDirection = 3
	GuideWest  GuideDirection = 4
)

func (d GuideDirection) Valid() bool {
	return d >= GuideNorth && d <= GuideWest
}

func (d GuideDirection) String() string {
	switch d {
	case GuideNorth:
		return "north"
	case GuideSouth:
		return "south"
	case GuideEast:
		return "east"
	case GuideWest:
		return "west"
	}
	return "unknown"
}

// Label is the short form shown on the display.
func (d GuideDirection) Label() string {
	switch d {
	case GuideNorth:
		return "G/N"
	case GuideSouth:
		return "G/S"
	case GuideEast:
		return "G/E"
	case GuideWest:
		return "G/W"
	}
	return "   "
}

type SideOfPier uint8

const (
	PierNormal  SideOfPier = 0
	PierFlipped SideOfPier = 1
)

func (s SideOfPier) String() string {
	if s == PierFlipped {
		return "BeyondThePole/West"
	}
	return "Normal/East"
}

const (
	SiderealDayMillis = 86164090.5
	SolarDayMillis    = 86400000.0
)

// Display is the status record shown on the controller's screen.
type Display struct {
	Title string
	Lines [3]string
}

// SlewEngine plans and executes slews. Speed updates are delivered through
// the callback installed by the controller, never synchronously from SlewTo
// or AbortSlew.
type SlewEngine interface {
	IsSlewing() bool
	// Progress is the completed fraction of the current slew in [0, 1].
	Progress() float64
	TimeToGoMillis() int
	SlewTo(ra, decMech AngleMillis)
	AbortSlew()
}

// SpeedCallback receives slew speeds in rotations per reference day.
type SpeedCallback func(raCycles, decCycles float64)

// Encoder stores absolute axis positions in the mechanical frame.
type Encoder interface {
	Angles() (ra, decMech AngleMillis)
	SetAngles(ra, decMech AngleMillis)
}

type DisplaySink interface {
	Show(d Display)
}

// DriveSink applies enable/direction/frequency/duty to one stepper driver.
type DriveSink interface {
	Apply(axis Axis, out AxisOutput)
}

// AxisOutput is the drive signal for a single stepper driver.
type AxisOutput struct {
	Enabled bool
	// Forward is the direction line level after the reversal flag is applied.
	Forward     bool
	FrequencyHz int
	Duty        uint32
	// Cycles is the signed commanded rate in rotations per reference day,
	// after clamping. Zero when disabled.
	Cycles float64
}

// Status is a snapshot of mount state for status feeds.
type Status struct {
	Tracking      TrackingMode
	PulseGuiding  GuideDirection
	RaSpeed       Rate
	DecSpeed      Rate
	RaGuideSpeed  Rate
	DecGuideSpeed Rate
	SideOfPier    SideOfPier
	Slewing       bool
	RaAngle       AngleMillis
	DecAngle      AngleMillis
	Display       Display
}

type StatusCallback func(status Status)
