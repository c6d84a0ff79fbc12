package mount

// AngleMillis is an angle where FullRotation is 360 degrees.
type AngleMillis int32

const (
	Deg90        AngleMillis = 21600000
	Deg180       AngleMillis = 43200000
	Deg270       AngleMillis = 64800000
	FullRotation AngleMillis = 86400000
)

func (a AngleMillis) Degrees() float64 {
	return float64(a) * 360 / float64(FullRotation)
}

// NormalizeAngle wraps a into [0, FullRotation).
func NormalizeAngle(a int64) AngleMillis {
	a %= int64(FullRotation)
	if a < 0 {
		a += int64(FullRotation)
	}
	return AngleMillis(a)
}

// MechanicalToSky maps a mechanical declination axis angle onto the sky
// frame. Angles in [90°, 270°] are past the pole and report PierFlipped.
func MechanicalToSky(mech AngleMillis) (AngleMillis, SideOfPier) {
	a := NormalizeAngle(int64(mech))
	switch {
	case a < Deg90:
		return a, PierNormal
	case a > Deg270:
		return a - FullRotation, PierNormal
	}
	return Deg180 - a, PierFlipped
}

// SkyToMechanical is the inverse of MechanicalToSky for the given side.
// The flipped angle is computed in int64 and wrapped into [0, FullRotation).
func SkyToMechanical(sky AngleMillis, side SideOfPier) AngleMillis {
	if side == PierFlipped {
		return NormalizeAngle(int64(Deg180) - int64(sky))
	}
	return sky
}
