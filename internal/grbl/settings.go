package grbl

// DefaultSettings configures the plotter: homing and hard limits off,
// 40 steps/mm on X and Y, 400 on Z, and the travel envelope of the frame.
func DefaultSettings() []string {
	return []string{
		"$22=0", // homing cycle
		"$23=3", // homing direction mask
		"$5=1",  // limit pins pull-up
		"$21=0", // hard limits
		"$100=40.00",
		"$101=40.00",
		"$102=400.00",
		"$110=1000", // max rate mm/min
		"$111=1000",
		"$112=500",
		"$130=650", // max travel mm
		"$131=700",
		"$132=50",
	}
}

var errorCodes = map[int]string{
	1:  "expected command letter",
	2:  "bad number format",
	3:  "invalid statement",
	4:  "negative value",
	5:  "homing not enabled",
	8:  "not idle",
	9:  "locked out during alarm or jog",
	10: "soft limits need homing enabled",
	11: "line overflow",
	15: "jog target exceeds machine travel",
	16: "invalid jog command",
	20: "unsupported command",
	22: "undefined feed rate",
}

var alarmCodes = map[int]string{
	1: "hard limit triggered",
	2: "soft limit",
	3: "reset while in motion",
	8: "homing fail: pull-off",
	9: "homing fail: limit switch not found",
}

// MaxLineLength is the longest line GRBL 1.1 accepts, excluding the
// newline.
const MaxLineLength = 80
