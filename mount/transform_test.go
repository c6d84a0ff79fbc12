package mount

import (
	"math"
	"math/rand"
	"testing"
)

func TestMechanicalToSky(t *testing.T) {
	for _, test := range []struct {
		name string
		mech AngleMillis
		sky  AngleMillis
		side SideOfPier
	}{
		{"zero", 0, 0, PierNormal},
		{"45", 10800000, 10800000, PierNormal},
		{"just below 90", Deg90 - 1, Deg90 - 1, PierNormal},
		{"90", Deg90, Deg90, PierFlipped},
		{"135", 45000000, -1800000, PierFlipped},
		{"180", Deg180, 0, PierFlipped},
		{"270", Deg270, -Deg90, PierFlipped},
		{"just above 270", Deg270 + 1, -Deg90 + 1, PierNormal},
		{"negative", -10800000, -10800000, PierNormal},
		{"more than a turn", FullRotation + 10800000, 10800000, PierNormal},
		{"minus a turn and a half", -FullRotation - Deg180, 0, PierFlipped},
	} {
		t.Run(test.name, func(t *testing.T) {
			sky, side := MechanicalToSky(test.mech)
			if sky != test.sky || side != test.side {
				t.Errorf("MechanicalToSky(%d) = (%d, %v), want (%d, %v)", test.mech, sky, side, test.sky, test.side)
			}
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	check := func(x AngleMillis) {
		sky, side := MechanicalToSky(x)
		back := SkyToMechanical(sky, side)
		if NormalizeAngle(int64(back)) != NormalizeAngle(int64(x)) {
			t.Fatalf("round trip of %d gave %d (sky %d, side %v)", x, back, sky, side)
		}
	}
	for _, x := range []AngleMillis{0, Deg90, Deg180, Deg270, FullRotation - 1, -1, Deg90 - 1, Deg270 + 1} {
		check(x)
	}
	for i := 0; i < 10000; i++ {
		check(AngleMillis(r.Int31n(4*int32(FullRotation)) - 2*int32(FullRotation)))
	}
}

func TestSkyPreservedAcrossFlip(t *testing.T) {
	for _, sky := range []AngleMillis{0, 1800000, -1800000, Deg90 - 1, -Deg90 + 1} {
		for _, side := range []SideOfPier{PierNormal, PierFlipped} {
			got, gotSide := MechanicalToSky(SkyToMechanical(sky, side))
			if got != sky {
				t.Errorf("sky %d on %v: got %d", sky, side, got)
			}
			if gotSide != side {
				t.Errorf("sky %d on %v: reclassified as %v", sky, side, gotSide)
			}
		}
	}
}

func TestSkyToMechanicalExtremes(t *testing.T) {
	for _, test := range []struct {
		sky  AngleMillis
		want AngleMillis
	}{
		{math.MinInt32, 30683648},
		{math.MaxInt32, 55716353},
		{Deg180, 0},
		{-Deg180, 0},
	} {
		got := SkyToMechanical(test.sky, PierFlipped)
		if got != test.want {
			t.Errorf("SkyToMechanical(%d, flipped) = %d, want %d", test.sky, got, test.want)
		}
		if got < 0 || got >= FullRotation {
			t.Errorf("SkyToMechanical(%d, flipped) = %d out of range", test.sky, got)
		}
	}
}
