package color

// cieLab converts a calibration tool reading (L* 0..100, a*/b* -127..128)
// to OpenCV's 8-bit Lab encoding.
func cieLab(l, a, b int) Triple {
	return Triple{int(float64(l) * 2.55), a + 127, b + 127}
}

func calibrated(name string, hsvLo, hsvHi, labLo, labHi Triple) Range {
	return Range{
		Name:    name,
		HSV:     Bounds{Lower: hsvLo, Upper: hsvHi},
		Lab:     Bounds{Lower: labLo, Upper: labHi},
		AreaMin: 100,
		AreaMax: 50000,
	}
}

// DefaultTable returns the ranges calibrated for the installation's sticks
// under its lighting.
func DefaultTable() *Table {
	t, err := NewTable(
		calibrated("pink", Triple{149, 30, 115}, Triple{170, 185, 255}, cieLab(15, 26, -19), cieLab(100, 61, 5)),
		calibrated("blue", Triple{106, 70, 187}, Triple{129, 233, 255}, cieLab(43, 1, -65), cieLab(84, 27, -25)),
		calibrated("purple", Triple{132, 66, 19}, Triple{148, 255, 255}, cieLab(0, 25, -127), cieLab(100, 128, -19)),
		calibrated("red", Triple{170, 128, 109}, Triple{179, 255, 255}, cieLab(37, 58, -127), cieLab(100, 128, 128)),
		calibrated("green", Triple{43, 42, 50}, Triple{64, 201, 255}, cieLab(30, -127, 21), cieLab(100, -20, 60)),
		calibrated("cyan", Triple{90, 104, 246}, Triple{103, 181, 254}, cieLab(30, -99, -31), cieLab(95, -14, -13)),
		calibrated("dark_green", Triple{70, 125, 143}, Triple{88, 195, 255}, cieLab(21, -58, 4), cieLab(85, -33, 19)),
		calibrated("yellow", Triple{19, 82, 179}, Triple{32, 255, 255}, cieLab(50, -69, 54), cieLab(100, 128, 128)),
		calibrated("white", Triple{10, 0, 180}, Triple{116, 19, 255}, cieLab(85, -3, -8), cieLab(100, 17, 12)),
		calibrated("black", Triple{0, 0, 59}, Triple{179, 60, 161}, cieLab(13, -1, -9), cieLab(45, 14, 6)),
	)
	if err != nil {
		panic("color: invalid built-in table: " + err.Error())
	}
	return t
}
